package ofx

import (
	"regexp"
	"strings"
)

var (
	stmtBlock = regexp.MustCompile(`(?is)<STMTTRN>(.*?)</STMTTRN>`)
	sgmlTag   = regexp.MustCompile(`^<(\w+)>(.+)`)
)

var blockTags = map[string]*regexp.Regexp{}

func init() {
	for _, tag := range []string{"TRNTYPE", "TRNAMT", "NAME", "MEMO", "PAYEE", "DTPOSTED"} {
		blockTags[tag] = regexp.MustCompile(`<` + tag + `>([^<\n]+)`)
	}
}

// blockStrategy scans closed <STMTTRN>...</STMTTRN> blocks. Tag values run
// to the next '<' or newline.
type blockStrategy struct{}

func (blockStrategy) name() string { return "blocks" }

func (blockStrategy) extract(text string) ([]transaction, dialect, bool) {
	matches := stmtBlock.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, dialect{}, false
	}

	txns := make([]transaction, 0, len(matches))
	for _, m := range matches {
		block := m[1]
		value := func(tag string) string {
			sub := blockTags[tag].FindStringSubmatch(block)
			if sub == nil {
				return ""
			}
			return strings.TrimSpace(sub[1])
		}
		txns = append(txns, transaction{
			trnType: value("TRNTYPE"),
			amount:  value("TRNAMT"),
			name:    value("NAME"),
			memo:    value("MEMO"),
			payee:   value("PAYEE"),
			posted:  value("DTPOSTED"),
		})
	}
	return txns, blockDialect, true
}

// sgmlStrategy handles OFX 1.x SGML where aggregates are left unclosed. A
// transaction runs from a <STMTTRN> line to the next <STMTTRN>, </STMTTRN>
// or </BANKTRANLIST> line. It always applies.
type sgmlStrategy struct{}

func (sgmlStrategy) name() string { return "sgml" }

func (sgmlStrategy) extract(text string) ([]transaction, dialect, bool) {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	var txns []transaction
	for i := 0; i < len(lines); {
		if !strings.HasPrefix(lines[i], "<STMTTRN>") {
			i++
			continue
		}

		fields := map[string]string{}
		for i++; i < len(lines) && !endsTransaction(lines[i]); i++ {
			if m := sgmlTag.FindStringSubmatch(lines[i]); m != nil {
				fields[m[1]] = strings.TrimSpace(m[2])
			}
		}
		txns = append(txns, transaction{
			trnType: fields["TRNTYPE"],
			amount:  fields["TRNAMT"],
			name:    fields["NAME"],
			memo:    fields["MEMO"],
			payee:   fields["PAYEE"],
			posted:  fields["DTPOSTED"],
		})
	}
	return txns, sgmlDialect, true
}

func endsTransaction(line string) bool {
	return strings.HasPrefix(line, "<STMTTRN>") ||
		strings.HasPrefix(line, "</STMTTRN>") ||
		strings.HasPrefix(line, "</BANKTRANLIST>")
}
