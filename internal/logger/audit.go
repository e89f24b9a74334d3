package logger

import (
	"io"
	"log"
	"strings"
	"sync"

	"prism/internal/pkg/jsonutil"
)

var (
	auditMu   sync.Mutex
	auditLog  *log.Logger
	auditDump bool
)

// SetAuditWriter directs analysis audit blocks to w. A nil writer disables them.
func SetAuditWriter(w io.Writer) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if w == nil {
		auditLog = nil
		return
	}
	auditLog = log.New(w, "", log.LstdFlags)
}

// EnableAuditDump toggles whether the raw analysis payload is included.
func EnableAuditDump(enabled bool) {
	auditMu.Lock()
	auditDump = enabled
	auditMu.Unlock()
}

// AuditSection is one titled body inside an audit block.
type AuditSection struct {
	Title string
	Body  string
}

func writeAudit(kind, subject string, sections []AuditSection) {
	auditMu.Lock()
	l := auditLog
	auditMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[AUDIT]")
	if kind != "" {
		b.WriteString("[" + kind + "]")
	}
	if subject != "" {
		b.WriteString("[" + subject + "]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		body := jsonutil.Pretty(sec.Body)
		b.WriteString("--- " + t + " ---\n")
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	l.Print(b.String())
}

// LogAnalysis records one analyze call: the submitted decision and, when
// payload dumping is on, the serialized result.
func LogAnalysis(asset, request, payload string) {
	sections := []AuditSection{{Title: "REQUEST", Body: request}}
	auditMu.Lock()
	dump := auditDump
	auditMu.Unlock()
	if dump && strings.TrimSpace(payload) != "" {
		sections = append(sections, AuditSection{Title: "RESULT", Body: payload})
	}
	writeAudit("analysis", asset, sections)
}

// LogPayment records a subscription upgrade.
func LogPayment(userRef, body string) {
	writeAudit("payment", userRef, []AuditSection{{Title: "RECEIPT", Body: body}})
}
