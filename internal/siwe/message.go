// Package siwe renders and parses EIP-4361 Sign-In with Ethereum messages.
package siwe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	headerSuffix = " wants you to sign in with your Ethereum account:"
	version      = "1"

	tagURI            = "URI: "
	tagVersion        = "Version: "
	tagChainID        = "Chain ID: "
	tagNonce          = "Nonce: "
	tagIssuedAt       = "Issued At: "
	tagExpirationTime = "Expiration Time: "
	tagNotBefore      = "Not Before: "
	tagRequestID      = "Request ID: "
	tagResources      = "Resources:"
)

var ErrMalformed = errors.New("malformed siwe message")

// Message is an EIP-4361 sign-in request.
type Message struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
	RequestID      string
	Resources      []string
}

// String renders the canonical message text that wallets sign.
func (m *Message) String() string {
	var b strings.Builder
	b.WriteString(m.Domain)
	b.WriteString(headerSuffix)
	b.WriteString("\n")
	b.WriteString(m.Address)
	b.WriteString("\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement)
		b.WriteString("\n\n")
	}

	v := m.Version
	if v == "" {
		v = version
	}
	fields := []string{
		tagURI + m.URI,
		tagVersion + v,
		tagChainID + strconv.FormatInt(m.ChainID, 10),
		tagNonce + m.Nonce,
		tagIssuedAt + formatTime(m.IssuedAt),
	}
	if m.ExpirationTime != nil {
		fields = append(fields, tagExpirationTime+formatTime(*m.ExpirationTime))
	}
	if m.NotBefore != nil {
		fields = append(fields, tagNotBefore+formatTime(*m.NotBefore))
	}
	if m.RequestID != "" {
		fields = append(fields, tagRequestID+m.RequestID)
	}
	b.WriteString(strings.Join(fields, "\n"))
	if len(m.Resources) > 0 {
		b.WriteString("\n")
		b.WriteString(tagResources)
		for _, r := range m.Resources {
			b.WriteString("\n- ")
			b.WriteString(r)
		}
	}
	return b.String()
}

// Parse reads a message produced by String or by a conforming wallet library.
func Parse(text string) (*Message, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("%w: too short", ErrMalformed)
	}

	m := &Message{}
	if !strings.HasSuffix(lines[0], headerSuffix) {
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	m.Domain = strings.TrimSuffix(lines[0], headerSuffix)
	if m.Domain == "" || strings.ContainsAny(m.Domain, " \t") {
		return nil, fmt.Errorf("%w: bad domain", ErrMalformed)
	}
	m.Address = lines[1]
	if m.Address == "" {
		return nil, fmt.Errorf("%w: missing address", ErrMalformed)
	}
	if lines[2] != "" {
		return nil, fmt.Errorf("%w: expected blank line after address", ErrMalformed)
	}

	i := 3
	if i < len(lines) && !strings.HasPrefix(lines[i], tagURI) {
		m.Statement = lines[i]
		i++
		if i >= len(lines) || lines[i] != "" {
			return nil, fmt.Errorf("%w: expected blank line after statement", ErrMalformed)
		}
		i++
	}

	seen := map[string]bool{}
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == tagResources {
			for i++; i < len(lines); i++ {
				if !strings.HasPrefix(lines[i], "- ") {
					return nil, fmt.Errorf("%w: bad resource line", ErrMalformed)
				}
				m.Resources = append(m.Resources, strings.TrimPrefix(lines[i], "- "))
			}
			break
		}
		if err := m.parseField(line, seen); err != nil {
			return nil, err
		}
	}

	for _, required := range []string{tagURI, tagVersion, tagChainID, tagNonce, tagIssuedAt} {
		if !seen[required] {
			return nil, fmt.Errorf("%w: missing %q", ErrMalformed, strings.TrimSpace(required))
		}
	}
	if m.Version != version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformed, m.Version)
	}
	if len(m.Nonce) < 8 {
		return nil, fmt.Errorf("%w: nonce too short", ErrMalformed)
	}
	return m, nil
}

func (m *Message) parseField(line string, seen map[string]bool) error {
	tags := []string{tagURI, tagVersion, tagChainID, tagNonce, tagIssuedAt, tagExpirationTime, tagNotBefore, tagRequestID}
	for _, tag := range tags {
		if !strings.HasPrefix(line, tag) {
			continue
		}
		if seen[tag] {
			return fmt.Errorf("%w: duplicate %q", ErrMalformed, strings.TrimSpace(tag))
		}
		seen[tag] = true
		value := strings.TrimPrefix(line, tag)

		switch tag {
		case tagURI:
			m.URI = value
		case tagVersion:
			m.Version = value
		case tagChainID:
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad chain id", ErrMalformed)
			}
			m.ChainID = id
		case tagNonce:
			m.Nonce = value
		case tagIssuedAt:
			t, err := parseTime(value)
			if err != nil {
				return err
			}
			m.IssuedAt = t
		case tagExpirationTime:
			t, err := parseTime(value)
			if err != nil {
				return err
			}
			m.ExpirationTime = &t
		case tagNotBefore:
			t, err := parseTime(value)
			if err != nil {
				return err
			}
			m.NotBefore = &t
		case tagRequestID:
			m.RequestID = value
		}
		return nil
	}
	return fmt.Errorf("%w: unexpected line %q", ErrMalformed, line)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformed, s)
	}
	return t, nil
}
