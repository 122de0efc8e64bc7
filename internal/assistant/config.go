package assistant

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/example/sabores-reservas/internal/intent"
	"gopkg.in/yaml.v3"
)

//go:embed prompt.yaml
var defaultConfig []byte

// Config is the prompt template and every canned reply.
type Config struct {
	Template string          `yaml:"template"`
	Messages Messages        `yaml:"messages"`
	Parser   intent.Messages `yaml:"parser"`
}

type Messages struct {
	NoResponse  string `yaml:"no_response"`
	Unavailable string `yaml:"unavailable"`
	NoTables    string `yaml:"no_tables"`
	Rejected    string `yaml:"rejected"`
	Confirmed   string `yaml:"confirmed"`
	Retry       string `yaml:"retry"`
	EmailFailed string `yaml:"email_failed"`
	UnknownSlot string `yaml:"unknown_slot"`
	PastDate    string `yaml:"past_date"`
}

func DefaultConfig() Config {
	var c Config
	if err := yaml.Unmarshal(defaultConfig, &c); err != nil {
		panic(fmt.Sprintf("assistant: embedded prompt.yaml: %v", err))
	}
	return c
}

// LoadConfig reads a YAML file laid out like prompt.yaml. Keys the file
// leaves out keep their default. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	def := DefaultConfig()
	if path == "" {
		return def, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("assistant config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("assistant config %s: %w", path, err)
	}
	return c.merge(def), nil
}

func (c Config) merge(d Config) Config {
	pick := func(a, b string) string {
		if strings.TrimSpace(a) == "" {
			return b
		}
		return a
	}
	return Config{
		Template: pick(c.Template, d.Template),
		Messages: Messages{
			NoResponse:  pick(c.Messages.NoResponse, d.Messages.NoResponse),
			Unavailable: pick(c.Messages.Unavailable, d.Messages.Unavailable),
			NoTables:    pick(c.Messages.NoTables, d.Messages.NoTables),
			Rejected:    pick(c.Messages.Rejected, d.Messages.Rejected),
			Confirmed:   pick(c.Messages.Confirmed, d.Messages.Confirmed),
			Retry:       pick(c.Messages.Retry, d.Messages.Retry),
			EmailFailed: pick(c.Messages.EmailFailed, d.Messages.EmailFailed),
			UnknownSlot: pick(c.Messages.UnknownSlot, d.Messages.UnknownSlot),
			PastDate:    pick(c.Messages.PastDate, d.Messages.PastDate),
		},
		Parser: c.Parser.Merge(d.Parser),
	}
}

// fill replaces {key} placeholders.
func fill(msg string, kv ...string) string {
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}
