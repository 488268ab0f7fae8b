// internal/access/loader.go
package access

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// fileWindow формат записи в access файле. JSON массив тоже валидный YAML.
//
//	- start: "2021-10-01T18:00:00Z"
//	  end: "2021-10-02T18:00:00Z"
//	  wallets: ["9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"]
//	- start: 1633111200
type fileWindow struct {
	Start   string   `yaml:"start" validate:"required"`
	End     string   `yaml:"end"`
	Wallets []string `yaml:"wallets" validate:"omitempty,dive,required"`
}

var validate = validator.New()

// LoadPolicy читает политику один раз; результат неизменяем.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read access file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy разбирает YAML или JSON массив окон.
func ParsePolicy(data []byte) (*Policy, error) {
	var raw []fileWindow
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse access file: %w", err)
	}

	windows := make([]Window, 0, len(raw))
	for i, fw := range raw {
		if err := validate.Struct(fw); err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		start, err := parseTime(fw.Start)
		if err != nil {
			return nil, fmt.Errorf("window %d start: %w", i, err)
		}
		w := Window{Start: start}
		if strings.TrimSpace(fw.End) != "" {
			end, err := parseTime(fw.End)
			if err != nil {
				return nil, fmt.Errorf("window %d end: %w", i, err)
			}
			w.End = &end
		}
		if fw.Wallets != nil {
			for _, wallet := range fw.Wallets {
				if _, err := solana.PublicKeyFromBase58(wallet); err != nil {
					return nil, fmt.Errorf("window %d: invalid wallet %q: %w", i, wallet, err)
				}
			}
			w.Wallets = NewWallets(fw.Wallets...)
		}
		windows = append(windows, w)
	}
	return NewPolicy(windows)
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime принимает RFC3339, дату без зоны (UTC) или unix секунды.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse %q as date", s)
}
