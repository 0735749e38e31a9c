// Package statement renders card ledger entries as XML statements.
package statement

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/Dan9191/card-ledger/internal/models"
)

const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

// Build creates the statement document for one page of a card's ledger
func Build(card *models.Card, entries models.Page[models.Transaction], generatedAt time.Time) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("statement")
	root.CreateAttr("generated-at", generatedAt.UTC().Format(time.RFC3339))

	c := root.CreateElement("card")
	c.CreateAttr("id", card.ID.String())
	c.CreateAttr("number", card.Masked())
	c.CreateAttr("holder", card.HolderName)
	c.CreateAttr("expiry", fmt.Sprintf("%02d/%02d", card.ExpiryMonth, card.ExpiryYear))
	c.CreateAttr("status", string(card.Status))
	c.CreateAttr("balance", strconv.FormatInt(card.Balance, 10))

	list := root.CreateElement("entries")
	list.CreateAttr("page", strconv.Itoa(entries.Page))
	list.CreateAttr("size", strconv.Itoa(entries.Size))
	list.CreateAttr("total", strconv.Itoa(entries.Total))

	for _, tr := range entries.Items {
		e := list.CreateElement("entry")
		e.CreateAttr("id", tr.ID.String())
		e.CreateAttr("date", tr.CreatedAt.UTC().Format(time.RFC3339))
		e.CreateAttr("status", string(tr.Status))
		e.CreateAttr("amount", strconv.FormatInt(tr.Amount, 10))

		direction := DirectionCredit
		if tr.FromCardID == card.ID {
			direction = DirectionDebit
		}
		e.CreateAttr("direction", direction)

		e.CreateElement("from").SetText(models.Mask(tr.FromCardLast4))
		e.CreateElement("to").SetText(models.Mask(tr.ToCardLast4))
		// balance-after is the source card's balance; only meaningful on debits
		if direction == DirectionDebit {
			e.CreateElement("balance-after").SetText(strconv.FormatInt(tr.BalanceAfter, 10))
		}
	}
	return doc
}

// Render builds the statement and serializes it with indentation
func Render(card *models.Card, entries models.Page[models.Transaction], generatedAt time.Time) ([]byte, error) {
	doc := Build(card, entries, generatedAt)
	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to write statement: %w", err)
	}
	return data, nil
}
