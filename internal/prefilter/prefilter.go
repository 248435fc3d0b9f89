// Package prefilter drops mails that should never reach the parser: newsletters
// by subject keyword, and senders outside the configured domain sets.
package prefilter

import (
	"net/mail"
	"strings"

	"github.com/cleared-dev/mailtx/internal/config"
	"github.com/cleared-dev/mailtx/internal/model"
	"github.com/cleared-dev/mailtx/internal/normalize"
)

// Drop reasons.
const (
	ReasonSubject     = "excluded_subject"
	ReasonExcluded    = "excluded_domain"
	ReasonNotIncluded = "domain_not_included"
)

// Filter holds normalized rules. The zero value keeps everything.
type Filter struct {
	subjects []string // normalized, upper-cased
	include  []string // lower-cased
	exclude  []string // lower-cased
}

// New builds a Filter from config.
func New(cfg config.FilterConfig) *Filter {
	f := &Filter{}
	for _, s := range cfg.ExcludedSubjects {
		if s = strings.ToUpper(normalize.Text(strings.TrimSpace(s))); s != "" {
			f.subjects = append(f.subjects, s)
		}
	}
	f.include = lowerAll(cfg.IncludeDomains)
	f.exclude = lowerAll(cfg.ExcludeDomains)
	return f
}

func lowerAll(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "@")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Check reports whether m should be kept, and the reason when it is not.
// Exclusions win over inclusions.
func (f *Filter) Check(m model.RawMail) (bool, string) {
	subject := strings.ToUpper(normalize.Text(m.Subject))
	for _, kw := range f.subjects {
		if strings.Contains(subject, kw) {
			return false, ReasonSubject
		}
	}

	domain := SenderDomain(m.From)
	if domain != "" && matchesAny(domain, f.exclude) {
		return false, ReasonExcluded
	}
	if len(f.include) > 0 && !matchesAny(domain, f.include) {
		return false, ReasonNotIncluded
	}
	return true, ""
}

// Apply returns the kept mails in input order and the number dropped per reason.
func (f *Filter) Apply(mails []model.RawMail) ([]model.RawMail, map[string]int) {
	kept := make([]model.RawMail, 0, len(mails))
	dropped := make(map[string]int)
	for _, m := range mails {
		if ok, reason := f.Check(m); !ok {
			dropped[reason]++
			continue
		}
		kept = append(kept, m)
	}
	return kept, dropped
}

// SenderDomain extracts the lower-cased domain of a From header value.
// It returns "" when no address can be found.
func SenderDomain(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}
	addr := from
	if a, err := mail.ParseAddress(from); err == nil {
		addr = a.Address
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(strings.Trim(addr[at+1:], " >"))
}

// matchesAny reports whether domain equals one of the entries or is a
// subdomain of one.
func matchesAny(domain string, entries []string) bool {
	if domain == "" {
		return false
	}
	for _, e := range entries {
		if domain == e || strings.HasSuffix(domain, "."+e) {
			return true
		}
	}
	return false
}
