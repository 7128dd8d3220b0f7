// Package mail renders passenger notifications and delivers them over SMTP.
package mail

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/ricirt/updatesvc/internal/domain"
)

// Substitution points of the notification template. The template must use
// each of them and nothing else.
const (
	VarBody = "body"
	VarURL  = "url"
	VarQR   = "qr"
)

var requiredVars = []string{VarBody, VarQR, VarURL}

//go:embed templates/notification.html
var DefaultTemplate string

// Composer renders notification messages. It is immutable after construction
// and safe for concurrent use.
type Composer struct {
	tmpl        *template.Template
	fromName    string
	fromAddress string
	urlPrefix   string
}

// NewComposer parses and validates tmplText. Values are substituted verbatim
// (text/template), so the body keeps exactly the characters it was given.
func NewComposer(tmplText, fromName, fromAddress, urlPrefix string) (*Composer, error) {
	tmpl, err := template.New("notification").Option("missingkey=error").Parse(tmplText)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if err := validatePlaceholders(tmpl.Tree); err != nil {
		return nil, err
	}
	return &Composer{
		tmpl:        tmpl,
		fromName:    fromName,
		fromAddress: fromAddress,
		urlPrefix:   urlPrefix,
	}, nil
}

// Compose renders the message for one recipient. The address is not checked
// here; malformed addresses are rejected by the sender.
func (c *Composer) Compose(recipientName, recipientAddress, subject, reasonText, ticketURL string, signedCode []byte) domain.Message {
	vars := map[string]string{
		VarBody: RenderBody(reasonText),
		VarURL:  c.urlPrefix + ticketURL,
		VarQR:   base64.StdEncoding.EncodeToString(signedCode),
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, vars); err != nil {
		// unreachable: the placeholder set was validated in NewComposer
		panic(fmt.Sprintf("compose notification: %v", err))
	}

	return domain.Message{
		FromName:    c.fromName,
		FromAddress: c.fromAddress,
		ToName:      recipientName,
		ToAddress:   recipientAddress,
		Subject:     subject,
		HTMLBody:    buf.String(),
	}
}

// RenderBody converts every newline to an HTML line break.
func RenderBody(text string) string {
	return strings.ReplaceAll(text, "\n", "<br/>")
}

// validatePlaceholders accepts only plain text and {{.name}} actions, and
// requires the set of names to equal requiredVars.
func validatePlaceholders(tree *parse.Tree) error {
	if tree == nil || tree.Root == nil {
		return fmt.Errorf("template is empty")
	}

	seen := make(map[string]bool)
	for _, node := range tree.Root.Nodes {
		switch n := node.(type) {
		case *parse.TextNode:
		case *parse.ActionNode:
			name, ok := fieldName(n)
			if !ok {
				return fmt.Errorf("template: unsupported action %s", n.String())
			}
			seen[name] = true
		default:
			return fmt.Errorf("template: unsupported construct %s", node.String())
		}
	}

	var missing, unknown []string
	for _, v := range requiredVars {
		if !seen[v] {
			missing = append(missing, v)
		}
		delete(seen, v)
	}
	for v := range seen {
		unknown = append(unknown, v)
	}
	sort.Strings(unknown)

	if len(missing) > 0 || len(unknown) > 0 {
		return fmt.Errorf("template placeholders: missing %v, unknown %v", missing, unknown)
	}
	return nil
}

func fieldName(n *parse.ActionNode) (string, bool) {
	if n.Pipe == nil || len(n.Pipe.Decl) > 0 || len(n.Pipe.Cmds) != 1 {
		return "", false
	}
	args := n.Pipe.Cmds[0].Args
	if len(args) != 1 {
		return "", false
	}
	field, ok := args[0].(*parse.FieldNode)
	if !ok || len(field.Ident) != 1 {
		return "", false
	}
	return field.Ident[0], true
}
