// Package bookingtest provides in-memory collaborators for lifecycle tests.
package bookingtest

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/repository"
)

type Bookings struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.Booking

	// BeforeUpdate runs inside UpdateStatus before the conditional write.
	// Tests use it to let a competing writer win.
	BeforeUpdate func(id uuid.UUID)
	CreateErr    error
	Deleted      []uuid.UUID
}

func NewBookings() *Bookings {
	return &Bookings{rows: map[uuid.UUID]domain.Booking{}}
}

func (f *Bookings) Put(b domain.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[b.ID] = b
}

func (f *Bookings) SetStatus(id uuid.UUID, s domain.BookingStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.rows[id]
	b.Status = s
	f.rows[id] = b
}

func (f *Bookings) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *Bookings) Create(_ context.Context, b *domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return f.CreateErr
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	f.rows[b.ID] = *b
	return nil
}

func (f *Bookings) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	f.Deleted = append(f.Deleted, id)
	return nil
}

func (f *Bookings) Get(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (f *Bookings) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, b := range f.rows {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *Bookings) UpdateStatus(
	_ context.Context,
	id uuid.UUID,
	from, to domain.BookingStatus,
	adminNotes string,
) (bool, error) {
	if f.BeforeUpdate != nil {
		f.BeforeUpdate(id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.rows[id]
	if !ok || b.Status != from {
		return false, nil
	}

	b.Status = to
	if adminNotes != "" {
		b.AdminNotes = adminNotes
	}
	f.rows[id] = b

	return true, nil
}

func (f *Bookings) FindExpiredHolds(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, b := range f.rows {
		if b.Status == domain.StatusHoldPendingPayment && b.HoldExpiresAt.Before(now) {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func (f *Bookings) MarkExpired(_ context.Context, ids []uuid.UUID, now time.Time) ([]domain.ExpiredHold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ExpiredHold
	for _, id := range ids {
		b, ok := f.rows[id]
		if !ok || b.Status != domain.StatusHoldPendingPayment || !b.HoldExpiresAt.Before(now) {
			continue
		}
		b.Status = domain.StatusHoldExpired
		f.rows[id] = b
		out = append(out, domain.ExpiredHold{BookingID: b.ID, UserID: b.UserID, SlotStart: b.SlotStart})
	}
	return out, nil
}

func (f *Bookings) PurgeTerminal(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, b := range f.rows {
		if b.Status.Closed() && b.UpdatedAt.Before(before) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *Bookings) List(_ context.Context, filter domain.BookingFilter, loc *time.Location) ([]domain.BookingDetails, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.BookingDetails
	for _, b := range f.rows {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.Date != nil && !domain.SameDay(*filter.Date, b.SlotStart, loc) {
			continue
		}
		all = append(all, domain.BookingDetails{Booking: b})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SlotStart.After(all[j].SlotStart) })

	total := int64(len(all))
	lo := min(filter.Offset, len(all))
	hi := len(all)
	if filter.Limit > 0 {
		hi = min(lo+filter.Limit, len(all))
	}
	return all[lo:hi], total, nil
}

func (f *Bookings) CountByStatus(_ context.Context, statuses []domain.BookingStatus, from, to time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.rows {
		if b.SlotStart.Before(from) || !b.SlotStart.Before(to) {
			continue
		}
		if len(statuses) == 0 || contains(statuses, b.Status) {
			n++
		}
	}
	return n, nil
}

func (f *Bookings) CountWithStatus(_ context.Context, statuses []domain.BookingStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.rows {
		if contains(statuses, b.Status) {
			n++
		}
	}
	return n, nil
}

func contains(list []domain.BookingStatus, s domain.BookingStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type Payments struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]domain.Payment
	CreateErr error
}

func NewPayments() *Payments {
	return &Payments{rows: map[uuid.UUID]domain.Payment{}}
}

func (f *Payments) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *Payments) Create(_ context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.rows[p.BookingID] = *p
	return nil
}

func (f *Payments) Get(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *Payments) AttachSlip(_ context.Context, id uuid.UUID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.SlipPath = path
	p.Status = domain.PaymentUnderReview
	f.rows[id] = p
	return nil
}

func (f *Payments) SetStatus(_ context.Context, id uuid.UUID, s domain.PaymentStatus, notes string, paidAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = s
	p.VerificationNotes = notes
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	f.rows[id] = p
	return nil
}

type Jobs struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]domain.Job
	PhaseErr error
}

func NewJobs() *Jobs {
	return &Jobs{rows: map[uuid.UUID]domain.Job{}}
}

func (f *Jobs) Get(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &j, nil
}

func (f *Jobs) Assign(_ context.Context, id uuid.UUID, assignee string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		j = domain.Job{BookingID: id, Phase: domain.PhasePickup}
	}
	j.Assignee = assignee
	f.rows[id] = j
	return nil
}

func (f *Jobs) UpdatePhase(
	_ context.Context,
	id uuid.UUID,
	phase domain.JobPhase,
	notes string,
	now time.Time,
	finished *time.Time,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PhaseErr != nil {
		return f.PhaseErr
	}
	j, ok := f.rows[id]
	if !ok {
		j = domain.Job{BookingID: id}
	}
	j.Phase = phase
	if notes != "" {
		j.Notes = notes
	}
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
	if finished != nil {
		j.FinishedAt = finished
	}
	f.rows[id] = j
	return nil
}

// Capacity counts ledger calls per slot.
type Capacity struct {
	mu sync.Mutex

	ReserveOK  bool
	ReserveErr error
	ReleaseErr error
	ConfirmErr error
	Bookable   bool
	Reason     string

	Reserves map[time.Time]int
	Releases map[time.Time]int
	Confirms map[time.Time]int
}

func NewCapacity() *Capacity {
	return &Capacity{
		ReserveOK: true,
		Bookable:  true,
		Reserves:  map[time.Time]int{},
		Releases:  map[time.Time]int{},
		Confirms:  map[time.Time]int{},
	}
}

func (c *Capacity) Reserve(_ context.Context, t time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reserves[t.UTC()]++
	if c.ReserveErr != nil {
		return false, c.ReserveErr
	}
	return c.ReserveOK, nil
}

func (c *Capacity) Release(_ context.Context, t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Releases[t.UTC()]++
	return c.ReleaseErr
}

func (c *Capacity) Confirm(_ context.Context, t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Confirms[t.UTC()]++
	return c.ConfirmErr
}

func (c *Capacity) CheckBookable(context.Context, time.Time) (bool, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Bookable, c.Reason, nil
}

func (c *Capacity) Count(m map[time.Time]int, t time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return m[t.UTC()]
}

func (c *Capacity) Total(m map[time.Time]int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

type Sent struct {
	BookingID uuid.UUID
	Status    domain.BookingStatus
	Note      string
}

// Notifier records every message it is asked to send.
type Notifier struct {
	mu   sync.Mutex
	sent []Sent
}

func (n *Notifier) BookingStatusChanged(_ context.Context, b domain.Booking, note string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Sent{BookingID: b.ID, Status: b.Status, Note: note})
}

func (n *Notifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Sent, len(n.sent))
	copy(out, n.sent)
	return out
}

type Slips struct {
	ValidateErr error
	Uploaded    []uuid.UUID
	QRUploads   int
}

func (s *Slips) Validate(_ []byte, declared string) (string, error) {
	if s.ValidateErr != nil {
		return "", s.ValidateErr
	}
	return declared, nil
}

func (s *Slips) Upload(_ context.Context, id uuid.UUID, _ string, _ []byte) (string, error) {
	s.Uploaded = append(s.Uploaded, id)
	return "slips/" + id.String(), nil
}

func (s *Slips) UploadQR(_ context.Context, contentType string, _ []byte) (string, error) {
	s.QRUploads++
	return "qr-codes/" + strconv.Itoa(s.QRUploads) + "." + strings.TrimPrefix(contentType, "image/"), nil
}

// Channels keeps payment channels keyed by type and name.
type Channels struct {
	mu      sync.Mutex
	rows    []domain.PaymentChannel
	ListErr error
}

func (c *Channels) ListPaymentChannels(_ context.Context, activeOnly bool) ([]domain.PaymentChannel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	var out []domain.PaymentChannel
	for _, ch := range c.rows {
		if activeOnly && !ch.IsActive {
			continue
		}
		out = append(out, ch)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (c *Channels) UpsertPaymentChannels(_ context.Context, channels []domain.PaymentChannel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
next:
	for _, ch := range channels {
		for i, row := range c.rows {
			if row.Type == ch.Type && row.Name == ch.Name {
				c.rows[i] = ch
				continue next
			}
		}
		c.rows = append(c.rows, ch)
	}
	return nil
}
