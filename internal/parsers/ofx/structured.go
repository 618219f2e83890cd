package ofx

import (
	"strconv"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/charmbracelet/log"
)

// structuredStrategy decodes the document with ofxgo. It only applies to
// complete, well-formed responses that carry at least one transaction;
// anything ofxgo rejects is left to the text scanners, which report per-row
// problems instead of failing the whole file.
type structuredStrategy struct{}

func (structuredStrategy) name() string { return "structured" }

func (structuredStrategy) extract(text string) ([]transaction, dialect, bool) {
	resp, err := ofxgo.ParseResponse(strings.NewReader(text))
	if err != nil {
		log.Debug("ofxgo could not decode document", "err", err)
		return nil, dialect{}, false
	}

	var lists []*ofxgo.TransactionList
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			lists = append(lists, stmt.BankTranList)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			lists = append(lists, stmt.BankTranList)
		}
	}

	var txns []transaction
	for _, list := range lists {
		if list == nil {
			continue
		}
		for _, t := range list.Transactions {
			txns = append(txns, fromOFXGo(t))
		}
	}
	if len(txns) == 0 {
		return nil, dialect{}, false
	}
	return txns, blockDialect, true
}

func fromOFXGo(t ofxgo.Transaction) transaction {
	txn := transaction{
		trnType: t.TrnType.String(),
		name:    strings.TrimSpace(t.Name.String()),
		memo:    strings.TrimSpace(t.Memo.String()),
	}
	if t.Payee != nil {
		txn.payee = strings.TrimSpace(t.Payee.Name.String())
	}

	amount, exact := t.TrnAmt.Float64()
	if !exact {
		log.Warn("precision loss in transaction amount", "fitid", t.FiTID.String(), "amount", t.TrnAmt.FloatString(4))
	}
	txn.amount = strconv.FormatFloat(amount, 'f', -1, 64)

	date := t.DtPosted.Time
	if date.IsZero() && t.DtUser != nil {
		date = t.DtUser.Time
	}
	if !date.IsZero() {
		txn.posted = date.Format("20060102")
	}
	return txn
}
