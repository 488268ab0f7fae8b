// internal/access/policy.go
package access

import (
	"fmt"
	"time"
)

// DeniedReason фиксированная причина отказа.
const DeniedReason = "Not authorized"

// Window интервал доступа [Start, End). End == nil означает бессрочное окно,
// Wallets == nil означает, что окно открыто для любого кошелька.
type Window struct {
	Start   time.Time
	End     *time.Time
	Wallets map[string]struct{}
}

// Contains проверяет попадание now в окно и identity в список.
func (w Window) Contains(identity string, now time.Time) bool {
	if now.Before(w.Start) {
		return false
	}
	if w.End != nil && !now.Before(*w.End) {
		return false
	}
	if w.Wallets == nil {
		return true
	}
	_, ok := w.Wallets[identity]
	return ok
}

// Decision результат проверки доступа.
type Decision struct {
	Allowed bool
	Reason  string
	// Window индекс сработавшего окна или -1.
	Window int
}

// Policy неизменяемый упорядоченный список окон.
type Policy struct {
	windows []Window
}

// NewPolicy копирует окна, чтобы внешний код не мог изменить политику после создания.
func NewPolicy(windows []Window) (*Policy, error) {
	out := make([]Window, len(windows))
	for i, w := range windows {
		if w.Start.IsZero() {
			return nil, fmt.Errorf("window %d: start is required", i)
		}
		if w.End != nil && !w.End.After(w.Start) {
			return nil, fmt.Errorf("window %d: end %s is not after start %s", i, w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
		}
		cp := Window{Start: w.Start}
		if w.End != nil {
			end := *w.End
			cp.End = &end
		}
		if w.Wallets != nil {
			cp.Wallets = make(map[string]struct{}, len(w.Wallets))
			for k := range w.Wallets {
				cp.Wallets[k] = struct{}{}
			}
		}
		out[i] = cp
	}
	return &Policy{windows: out}, nil
}

// OpenPolicy пропускает всех начиная с нулевого unix времени.
func OpenPolicy() *Policy {
	return &Policy{windows: []Window{{Start: time.Unix(0, 0)}}}
}

// Check чистая функция: первое подходящее окно по порядку даёт доступ.
func (p *Policy) Check(identity string, now time.Time) Decision {
	if p != nil {
		for i, w := range p.windows {
			if w.Contains(identity, now) {
				return Decision{Allowed: true, Window: i}
			}
		}
	}
	return Decision{Allowed: false, Reason: DeniedReason, Window: -1}
}

// Len число окон.
func (p *Policy) Len() int {
	if p == nil {
		return 0
	}
	return len(p.windows)
}

// NewWallets удобный конструктор allow-list.
func NewWallets(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
