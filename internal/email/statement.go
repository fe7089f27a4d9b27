package email

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukerupert/messledger/internal/model"
)

// Directory resolves members to their contact details.
type Directory interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]model.User, error)
}

type Observer interface {
	ObserveStatement(status string)
}

type statementSender interface {
	Configured() bool
	SendStatement(ctx context.Context, toEmail string, r *model.Report, line model.ReportLine) error
}

// Statements mails each member of a closed month their line of the report.
type Statements struct {
	sender   statementSender
	users    Directory
	observer Observer
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewStatements(sender statementSender, users Directory, observer Observer, logger *slog.Logger) *Statements {
	return &Statements{sender: sender, users: users, observer: observer, logger: logger}
}

// Send mails every line whose member has an email address and returns how
// many were delivered. A failed delivery does not stop the rest.
func (s *Statements) Send(ctx context.Context, r *model.Report) (int, error) {
	if !s.sender.Configured() {
		return 0, nil
	}

	ids := make([]int64, 0, len(r.Lines))
	for _, l := range r.Lines {
		ids = append(ids, l.UserID)
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, l := range r.Lines {
		u, ok := users[l.UserID]
		if !ok || u.Email == "" {
			s.observe("skipped")
			continue
		}
		if err := s.sender.SendStatement(ctx, u.Email, r, l); err != nil {
			s.logger.Warn("send statement", "month", r.Month.String(), "user_id", l.UserID, "error", err)
			s.observe("failed")
			continue
		}
		s.observe("sent")
		sent++
	}
	s.logger.Info("statements sent", "month", r.Month.String(), "sent", sent, "lines", len(r.Lines))
	return sent, nil
}

// Hook sends statements in the background once a month has closed.
func (s *Statements) Hook() func(context.Context, *model.Report) {
	return func(ctx context.Context, r *model.Report) {
		if !s.sender.Configured() {
			return
		}
		ctx = context.WithoutCancel(ctx)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if _, err := s.Send(ctx, r); err != nil {
				s.logger.Error("statements", "month", r.Month.String(), "error", err)
			}
		}()
	}
}

// Wait blocks until background sends started by Hook have finished.
func (s *Statements) Wait() {
	s.wg.Wait()
}

func (s *Statements) observe(status string) {
	if s.observer != nil {
		s.observer.ObserveStatement(status)
	}
}
