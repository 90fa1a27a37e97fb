// Package persona holds the bot's voice: the system prompt, the phrases that
// trigger image generation, the image-subject allowlist, and every canned
// user-facing message. The deployment ships Thai defaults; a YAML file can
// override any field without a rebuild.
package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Messages are the short, friendly texts users see for every non-answer
// outcome. Raw error detail never reaches the user; these do.
type Messages struct {
	Wait           string `yaml:"wait"`           // rate-limit notice
	NoSubject      string `yaml:"noSubject"`      // image request with nothing to draw
	OutOfScope     string `yaml:"outOfScope"`     // image subject outside the allowlist
	Drawing        string `yaml:"drawing"`        // interim ack before image generation
	ImageReady     string `yaml:"imageReady"`     // generated but undeliverable (no storage)
	ImageFailed    string `yaml:"imageFailed"`    // image generation failure
	TextFailed     string `yaml:"textFailed"`     // text generation failure
	EmptyAnswer    string `yaml:"emptyAnswer"`    // backend returned no text
	TruncationMark string `yaml:"truncationMark"` // appended to truncated replies
}

// Persona is the full pack.
type Persona struct {
	SystemPrompt string   `yaml:"systemPrompt"`
	Triggers     []string `yaml:"triggers"`
	Allowlist    []string `yaml:"allowlist"`
	Messages     Messages `yaml:"messages"`
}

// Default returns the embedded deployment persona: a Thai food and health
// assistant restricted to nutrition topics.
func Default() *Persona {
	return &Persona{
		SystemPrompt: strings.TrimSpace(`
คุณคือผู้ช่วยด้านอาหารและสุขภาพ มีหน้าที่ตอบคำถามเกี่ยวกับ:
- อาหารและโภชนาการ
- สุขภาพ
- ออกกำลังกาย
- สูตรอาหาร
- โภชนาการอาหาร

หากคำถามไม่เกี่ยวกับอาหารและสุขภาพ ให้ตอบว่า:
"ขอโทษค่ะ ฉันตอบได้เฉพาะเรื่องอาหาร สุขภาพ โภชนาการ และการกินนะคะ 🍎"
`),
		Triggers: []string{"สร้างรูป", "วาดรูป", "create image", "draw image"},
		Allowlist: []string{
			"อาหาร", "ผัก", "ผลไม้", "เมนู", "สลัด", "อาหารคลีน", "โภชนาการ",
			"food", "healthy", "meal",
		},
		Messages: Messages{
			Wait:           "รอแป๊บเด้อ 😅",
			NoSubject:      "บอกก่อนสิว่าจะให้วาดอะไร 🤨",
			OutOfScope:     "รูปต้องเกี่ยวกับอาหารหรือสุขภาพเท่านั้นนะ 🥗",
			Drawing:        "กำลังวาดรูปให้อยู่นะ 😎🎨",
			ImageReady:     "รูปสร้างเสร็จแล้ว 🎉\nแต่ต้องอัปโหลดไฟล์ไป storage ก่อน ถึงจะส่งใน LINE ได้เด้อ 📦",
			ImageFailed:    "วาดรูปไม่ผ่าน ลองใหม่ทีหลังนะ 😭",
			TextFailed:     "ระบบงอแง ลองใหม่ทีหลังนะ 😂",
			EmptyAnswer:    "ตอบไม่ได้จ้า 😭",
			TruncationMark: "(ตัดบางส่วน)",
		},
	}
}

// Load reads a persona YAML file and merges it over the embedded defaults:
// any field left empty in the file keeps its default. A missing file is not
// an error, the defaults are the shipped persona.
func Load(path string) (*Persona, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("read persona file %s: %w", path, err)
	}

	var override Persona
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse persona file %s: %w", path, err)
	}

	merge(p, &override)
	return p, nil
}

func merge(base, over *Persona) {
	if over.SystemPrompt != "" {
		base.SystemPrompt = over.SystemPrompt
	}
	if len(over.Triggers) > 0 {
		base.Triggers = over.Triggers
	}
	if len(over.Allowlist) > 0 {
		base.Allowlist = over.Allowlist
	}

	m, om := &base.Messages, &over.Messages
	if om.Wait != "" {
		m.Wait = om.Wait
	}
	if om.NoSubject != "" {
		m.NoSubject = om.NoSubject
	}
	if om.OutOfScope != "" {
		m.OutOfScope = om.OutOfScope
	}
	if om.Drawing != "" {
		m.Drawing = om.Drawing
	}
	if om.ImageReady != "" {
		m.ImageReady = om.ImageReady
	}
	if om.ImageFailed != "" {
		m.ImageFailed = om.ImageFailed
	}
	if om.TextFailed != "" {
		m.TextFailed = om.TextFailed
	}
	if om.EmptyAnswer != "" {
		m.EmptyAnswer = om.EmptyAnswer
	}
	if om.TruncationMark != "" {
		m.TruncationMark = om.TruncationMark
	}
}
