package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/models"
)

type stubSource struct {
	page models.Page[models.BlockRequestResponse]
	err  error
}

func (s stubSource) PendingDigest(context.Context) (models.Page[models.BlockRequestResponse], error) {
	return s.page, s.err
}

type stubMailer struct {
	calls int
	to    []string
	at    time.Time
}

func (m *stubMailer) SendBlockRequestDigest(to []string, _ models.Page[models.BlockRequestResponse], at time.Time) error {
	m.calls++
	m.to, m.at = to, at
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestDigestJobSendsPending(t *testing.T) {
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	mailer := &stubMailer{}
	job := &DigestJob{
		Source: stubSource{page: models.Page[models.BlockRequestResponse]{
			Items: []models.BlockRequestResponse{{RequestID: uuid.New(), Status: models.RequestStatusPending}},
			Total: 1,
		}},
		Mailer:     mailer,
		Recipients: []string{"admin@bank.test"},
		Log:        quietLogger(),
		Now:        func() time.Time { return at },
	}

	if err := job.RunContext(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if mailer.calls != 1 || mailer.to[0] != "admin@bank.test" || !mailer.at.Equal(at) {
		t.Fatalf("mailer: %+v", mailer)
	}
}

func TestDigestJobSkipsWhenNothingPending(t *testing.T) {
	mailer := &stubMailer{}
	job := &DigestJob{Source: stubSource{}, Mailer: mailer, Log: quietLogger()}
	if err := job.RunContext(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if mailer.calls != 0 {
		t.Fatal("digest sent with nothing pending")
	}
}

func TestDigestJobSourceError(t *testing.T) {
	boom := errors.New("db down")
	job := &DigestJob{Source: stubSource{err: boom}, Mailer: &stubMailer{}, Log: quietLogger()}
	if err := job.RunContext(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want source error, got %v", err)
	}
}

func TestSchedulerAdd(t *testing.T) {
	s := New(quietLogger())
	job := &DigestJob{Source: stubSource{}, Mailer: &stubMailer{}, Log: quietLogger()}

	if err := s.Add("every day", job); err == nil {
		t.Fatal("want error for invalid spec")
	}
	if err := s.Add("0 9 * * *", job); err != nil {
		t.Fatalf("add: %v", err)
	}
	if s.Entries() != 1 {
		t.Fatalf("entries=%d want 1", s.Entries())
	}

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
