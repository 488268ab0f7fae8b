// internal/candymachine/errors.go
package candymachine

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Condition класс ошибки программы, который различает отчёт.
type Condition string

const (
	ConditionNone              Condition = ""
	ConditionInsufficientFunds Condition = "insufficient_funds"
	ConditionSoldOut           Condition = "sold_out"
	ConditionNotLive           Condition = "not_live"
)

// CatalogEntry описание одного кода ошибки.
type CatalogEntry struct {
	Code      uint32
	Message   string
	Condition Condition
}

// ErrorCatalog отображение кодов ошибок программы в сообщения.
// Коды зависят от версии программы, поэтому каталог загружается из файла.
type ErrorCatalog struct {
	Version string
	entries map[uint32]CatalogEntry
}

// DefaultErrorCatalog коды candy machine v1.
func DefaultErrorCatalog() *ErrorCatalog {
	return &ErrorCatalog{
		Version: "candy-machine-v1",
		entries: map[uint32]CatalogEntry{
			0x135: {Code: 0x135, Message: "Insufficient funds to mint. Please fund your wallet.", Condition: ConditionInsufficientFunds},
			0x137: {Code: 0x137, Message: "SOLD OUT!", Condition: ConditionSoldOut},
			0x138: {Code: 0x138, Message: "Minting period hasn't started yet.", Condition: ConditionNotLive},
		},
	}
}

type catalogFile struct {
	Version string `yaml:"version"`
	Errors  map[string]struct {
		Message   string `yaml:"message"`
		Condition string `yaml:"condition"`
	} `yaml:"errors"`
}

// LoadErrorCatalog читает каталог из YAML. Ключи в десятичном виде или hex с 0x.
//
//	version: candy-machine-v1
//	errors:
//	  0x137: {message: "SOLD OUT!", condition: sold_out}
func LoadErrorCatalog(path string) (*ErrorCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read error catalog: %w", err)
	}
	return ParseErrorCatalog(data)
}

// ParseErrorCatalog разбирает YAML каталога.
func ParseErrorCatalog(data []byte) (*ErrorCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse error catalog: %w", err)
	}
	cat := &ErrorCatalog{Version: f.Version, entries: make(map[uint32]CatalogEntry, len(f.Errors))}
	for key, e := range f.Errors {
		code, err := parseCode(key)
		if err != nil {
			return nil, err
		}
		cond := Condition(e.Condition)
		switch cond {
		case ConditionNone, ConditionInsufficientFunds, ConditionSoldOut, ConditionNotLive:
		default:
			return nil, fmt.Errorf("error %s: unknown condition %q", key, e.Condition)
		}
		cat.entries[code] = CatalogEntry{Code: code, Message: e.Message, Condition: cond}
	}
	return cat, nil
}

func parseCode(key string) (uint32, error) {
	key = strings.TrimSpace(key)
	base := 10
	if strings.HasPrefix(key, "0x") || strings.HasPrefix(key, "0X") {
		key, base = key[2:], 16
	}
	code, err := strconv.ParseUint(key, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid error code %q: %w", key, err)
	}
	return uint32(code), nil
}

// Lookup ищет код в каталоге.
func (c *ErrorCatalog) Lookup(code uint32) (CatalogEntry, bool) {
	if c == nil {
		return CatalogEntry{}, false
	}
	e, ok := c.entries[code]
	return e, ok
}

// Describe сообщение для кода или общий текст с hex кодом.
func (c *ErrorCatalog) Describe(code uint32) string {
	if e, ok := c.Lookup(code); ok && e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("program error 0x%x", code)
}

// Codes коды каталога по возрастанию.
func (c *ErrorCatalog) Codes() []uint32 {
	if c == nil {
		return nil
	}
	out := make([]uint32, 0, len(c.entries))
	for code := range c.entries {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
