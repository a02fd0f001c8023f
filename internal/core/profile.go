package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// DefaultProfileTemplate is the prompt template written when none is configured.
const DefaultProfileTemplate = "{{ .System }}\n\nInput: {{ .Prompt }}\nOutput: "

// DefaultSystemPrompt states the four-tile contract the backend must follow.
const DefaultSystemPrompt = `You are TinkyBink, an AAC communication assistant.

CRITICAL RULE: You MUST always respond with EXACTLY this format:
emoji text, emoji text, emoji text, emoji text

Every response has exactly four segments separated by a comma and a space.
Each segment is one emoji, a space, then a short phrase of at most 40 characters.
No trailing period. Keep the whole response under 200 characters.

NEVER give only emojis. ALWAYS include text after each emoji.`

const examplesReminder = "Remember: ALWAYS 4 responses with emoji + text, separated by commas."

// DefaultProfileExamples are the few-shot pairs rendered after the system prompt.
var DefaultProfileExamples = []models.ProfileExample{
	{Input: "How are you?", Output: "😊 I'm good, 😐 I'm okay, 😔 Not great, 🤒 I feel sick"},
	{Input: "I have pain", Output: "🤕 Where hurts, 📍 Show me, 💊 Need medicine, 🏥 See doctor"},
	{Input: "Want pizza or salad?", Output: "🍕 Pizza please, 🥗 Salad please, 🤷 Either one, ❌ Neither thanks"},
	{Input: "I feel sad", Output: "🤗 Want hug, 💬 Talk about it, 🎵 Play music, 🤝 Stay with me"},
	{Input: "Are you hungry?", Output: "🍽️ Very hungry, 🍎 Little snack, 🥤 Just thirsty, ❌ Not hungry"},
	{Input: "What to do?", Output: "🎮 Play games, 📺 Watch TV, 🚶 Go outside, 📚 Read book"},
	{Input: "Need help?", Output: "🙋 Yes please, 🤝 Help me, 👍 I'm okay, ❌ No thanks"},
	{Input: "Surgery tomorrow?", Output: "😰 Really scared, 💪 I'm ready, 🤔 Worried about pain, 🙏 Hope it goes well"},
	{Input: "Make friends?", Output: "😊 Yes please, 😟 I'm shy, 🤝 Show me how, 💬 Start talking"},
	{Input: "Therapy hard?", Output: "😔 Very hard, 💪 Getting better, 😰 Feel tired, 🎯 Keep trying"},
}

// KnownProfileKeys lists the keys accepted under "profile".
var KnownProfileKeys = []string{
	"base", "dialect", "temperature", "top_p", "top_k", "repeat_penalty",
	"num_predict", "stop", "system", "template", "examples",
}

// ComposeProfile renders the backend profile text. The same configuration
// always yields byte-identical output.
func ComposeProfile(cfg models.ProfileConfig) (string, error) {
	if problems := ValidateProfile(cfg); len(problems) > 0 {
		return "", ConfigError(fmt.Sprintf("profile validation failed:\n  - %s", strings.Join(problems, "\n  - ")), nil)
	}

	baseKw, paramKw := "BASE", "PARAM"
	if cfg.Dialect == models.DialectOllama {
		baseKw, paramKw = "FROM", "PARAMETER"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", baseKw, cfg.Base)
	fmt.Fprintf(&b, "%s temperature %s\n", paramKw, formatFloat(cfg.Temperature))
	fmt.Fprintf(&b, "%s top_p %s\n", paramKw, formatFloat(cfg.TopP))
	fmt.Fprintf(&b, "%s top_k %d\n", paramKw, cfg.TopK)
	fmt.Fprintf(&b, "%s repeat_penalty %s\n", paramKw, formatFloat(cfg.RepeatPenalty))
	fmt.Fprintf(&b, "%s num_predict %d\n", paramKw, cfg.NumPredict)
	for _, s := range cfg.Stop {
		fmt.Fprintf(&b, "%s stop %s\n", paramKw, strconv.Quote(s))
	}

	b.WriteString("\nSYSTEM \"\"\"")
	b.WriteString(strings.TrimSpace(cfg.System))
	if len(cfg.Examples) > 0 {
		b.WriteString("\n\nPERFECT EXAMPLES:\n")
		for _, ex := range cfg.Examples {
			fmt.Fprintf(&b, "\nInput: %s\nOutput: %s\n", ex.Input, ex.Output)
		}
		b.WriteString("\n" + examplesReminder)
	}
	b.WriteString("\"\"\"\n\n")

	tmpl := cfg.Template
	if tmpl == "" {
		tmpl = DefaultProfileTemplate
	}
	b.WriteString("TEMPLATE \"\"\"")
	b.WriteString(tmpl)
	b.WriteString("\"\"\"\n")
	return b.String(), nil
}

// ValidateProfile returns one message per invalid profile setting.
func ValidateProfile(cfg models.ProfileConfig) []string {
	var errs []string
	if strings.TrimSpace(cfg.Base) == "" {
		errs = append(errs, "profile.base must not be empty")
	}
	switch cfg.Dialect {
	case models.DialectModelfile, models.DialectOllama:
	default:
		errs = append(errs, fmt.Sprintf("profile.dialect %q must be %q or %q", cfg.Dialect, models.DialectModelfile, models.DialectOllama))
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		errs = append(errs, fmt.Sprintf("profile.temperature %v outside [0, 1]", cfg.Temperature))
	}
	if cfg.TopP < 0 || cfg.TopP > 1 {
		errs = append(errs, fmt.Sprintf("profile.top_p %v outside [0, 1]", cfg.TopP))
	}
	if cfg.TopK <= 0 {
		errs = append(errs, fmt.Sprintf("profile.top_k %d must be positive", cfg.TopK))
	}
	if cfg.RepeatPenalty < 1 {
		errs = append(errs, fmt.Sprintf("profile.repeat_penalty %v must be at least 1", cfg.RepeatPenalty))
	}
	if cfg.NumPredict <= 0 {
		errs = append(errs, fmt.Sprintf("profile.num_predict %d must be positive", cfg.NumPredict))
	}
	if strings.TrimSpace(cfg.System) == "" {
		errs = append(errs, "profile.system must not be empty")
	}
	if strings.Contains(cfg.System, `"""`) {
		errs = append(errs, `profile.system must not contain """`)
	}
	if cfg.Template != "" {
		if strings.Contains(cfg.Template, `"""`) {
			errs = append(errs, `profile.template must not contain """`)
		}
		if !strings.Contains(cfg.Template, "{{ .System }}") || !strings.Contains(cfg.Template, "{{ .Prompt }}") {
			errs = append(errs, "profile.template must reference {{ .System }} and {{ .Prompt }}")
		}
	}
	for i, ex := range cfg.Examples {
		if strings.TrimSpace(ex.Input) == "" {
			errs = append(errs, fmt.Sprintf("profile.examples[%d] has no input", i))
		}
		if _, n, err := ParseTiles(ex.Output); err != nil || n != models.TilesPerRecord {
			errs = append(errs, fmt.Sprintf("profile.examples[%d] output %q is not four tiles", i, ex.Output))
		}
		if strings.Contains(ex.Input, `"""`) || strings.Contains(ex.Output, `"""`) {
			errs = append(errs, fmt.Sprintf(`profile.examples[%d] must not contain """`, i))
		}
	}
	return errs
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
