package statement

import (
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/Dan9191/card-ledger/internal/models"
)

func TestRenderStatement(t *testing.T) {
	card := &models.Card{
		ID:          uuid.New(),
		Number:      "4000123412341234",
		Last4:       "1234",
		HolderName:  "Ivan Petrov",
		ExpiryMonth: 3,
		ExpiryYear:  29,
		Status:      models.CardStatusActive,
		Balance:     400,
	}
	other := uuid.New()
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	entries := models.Page[models.Transaction]{
		Items: []models.Transaction{
			{ID: uuid.New(), Status: models.TransactionStatusSuccess, Amount: 100, FromCardID: card.ID, FromCardLast4: "1234", ToCardID: other, ToCardLast4: "9876", CreatedAt: at, BalanceAfter: 400},
			{ID: uuid.New(), Status: models.TransactionStatusSuccess, Amount: 50, FromCardID: other, FromCardLast4: "9876", ToCardID: card.ID, ToCardLast4: "1234", CreatedAt: at.Add(-time.Hour), BalanceAfter: 950},
		},
		Page: 0, Size: 10, Total: 2,
	}

	data, err := Render(card, entries, at)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(data), card.Number) {
		t.Fatal("statement leaks the full card number")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := doc.FindElement("/statement/card").SelectAttrValue("number", ""); got != "**** **** **** 1234" {
		t.Fatalf("card number=%q", got)
	}
	if got := doc.FindElement("/statement/entries").SelectAttrValue("total", ""); got != "2" {
		t.Fatalf("total=%q", got)
	}

	rows := doc.FindElements("/statement/entries/entry")
	if len(rows) != 2 {
		t.Fatalf("entries=%d want 2", len(rows))
	}
	if rows[0].SelectAttrValue("direction", "") != DirectionDebit || rows[0].FindElement("balance-after").Text() != "400" {
		t.Fatalf("first entry should be a debit with balance-after 400")
	}
	if rows[1].SelectAttrValue("direction", "") != DirectionCredit || rows[1].FindElement("balance-after") != nil {
		t.Fatalf("second entry should be a credit without balance-after")
	}
	if rows[1].FindElement("from").Text() != "**** **** **** 9876" {
		t.Fatalf("from=%q", rows[1].FindElement("from").Text())
	}
}
