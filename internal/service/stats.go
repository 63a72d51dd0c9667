package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sribagavath/sbb-server/internal/model"
)

// StatsStore is the persistence surface for the running totals and
// login counters.  *repository.StatsRepo satisfies it.
type StatsStore interface {
	Increment(ctx context.Context, d model.StatsDelta) error
	Get(ctx context.Context) (model.StatsTotals, error)
	Replace(ctx context.Context, t model.StatsTotals) error
	Scan(ctx context.Context) (model.StatsTotals, error)
	IncrementDailyLogin(ctx context.Context, day string) error
	IncrementGeoLogin(ctx context.Context, month, location string) error
	GeoLogins(ctx context.Context, month string) (map[string]int64, error)
}

// StatsService maintains the aggregate counters shown on the admin
// dashboard.  Every write here is best effort: the counters are an
// approximation that Recalculate can rebuild exactly, so failures are
// logged and never bubble into the caller's request.
type StatsService struct {
	store  StatsStore
	rdb    *redis.Client // nil disables login dedupe
	geoURL string        // printf template with one %s for the IP; "" disables lookups
	errLog *log.Logger

	httpClient *http.Client
}

// NewStatsService wires the service.  rdb may be nil, in which case
// every login counts (no daily dedupe).  geoURL is the lookup endpoint
// template; pass "" to skip geo tracking.
func NewStatsService(store StatsStore, rdb *redis.Client, geoURL string) *StatsService {
	return &StatsService{
		store:      store,
		rdb:        rdb,
		geoURL:     geoURL,
		errLog:     log.Default(),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// deltaFor maps a transaction to its contribution to the totals.
func deltaFor(tx model.Transaction) model.StatsDelta {
	var d model.StatsDelta
	switch tx.ItemType {
	case model.ItemBookOrder:
		d.BookOrders = 1
		d.BookRevenue = tx.Amount
	case model.ItemDonation:
		d.Donations = 1
		d.DonationAmount = tx.Amount
	case model.ItemProgramRegistration:
		if tx.Registration != nil {
			d.Participants = int64(tx.Registration.Count())
		} else {
			d.Participants = 1
		}
	}
	return d
}

// receiptDelta accounts for an uploaded receipt.  imageBytes is the
// base64 length; the stored estimate is the decoded size.
func receiptDelta(imageBytes int64) model.StatsDelta {
	if imageBytes <= 0 {
		return model.StatsDelta{}
	}
	return model.StatsDelta{Receipts: 1, ImageBytes: imageBytes * 3 / 4}
}

// ApplyRecorded applies the increments for a freshly recorded
// transaction and its receipt image, if any.
func (s *StatsService) ApplyRecorded(ctx context.Context, tx model.Transaction, imageBase64Len int64) {
	d := deltaFor(tx)
	r := receiptDelta(imageBase64Len)
	d.Receipts += r.Receipts
	d.ImageBytes += r.ImageBytes
	s.apply(ctx, d)
}

// ApplyDeleted reverses the increments for a deleted transaction.
func (s *StatsService) ApplyDeleted(ctx context.Context, tx model.Transaction, imageBase64Len int64) {
	d := deltaFor(tx)
	r := receiptDelta(imageBase64Len)
	d.Receipts += r.Receipts
	d.ImageBytes += r.ImageBytes
	s.apply(ctx, d.Neg())
}

// ProgramAdded and ProgramRemoved keep the program count current as
// the catalog changes.
func (s *StatsService) ProgramAdded(ctx context.Context) { s.apply(ctx, model.StatsDelta{Programs: 1}) }
func (s *StatsService) ProgramRemoved(ctx context.Context) {
	s.apply(ctx, model.StatsDelta{Programs: -1})
}

func (s *StatsService) apply(ctx context.Context, d model.StatsDelta) {
	if d.IsZero() {
		return
	}
	if err := s.store.Increment(ctx, d); err != nil {
		s.errLog.Printf("stats: increment failed: %v", err)
	}
}

// Totals returns the current running totals.
func (s *StatsService) Totals(ctx context.Context) (model.StatsTotals, error) {
	return s.store.Get(ctx)
}

// Recalculate rebuilds the totals from the active and archived tables
// and replaces the running row.  Login counters are preserved, not
// recomputed.
func (s *StatsService) Recalculate(ctx context.Context) (model.StatsTotals, error) {
	t, err := s.store.Scan(ctx)
	if err != nil {
		return model.StatsTotals{}, err
	}
	if err := s.store.Replace(ctx, t); err != nil {
		return model.StatsTotals{}, err
	}
	return s.store.Get(ctx)
}

// TrackLogin counts one login per device per day, plus a per-location
// monthly counter resolved from the caller's IP.  Everything here is
// best effort; call it in a goroutine off the request path.
func (s *StatsService) TrackLogin(ctx context.Context, deviceID, remoteIP string) {
	now := time.Now().UTC()
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")

	if s.rdb != nil && deviceID != "" {
		key := fmt.Sprintf("login:%s:%s", day, deviceID)
		ok, err := s.rdb.SetNX(ctx, key, "1", 48*time.Hour).Result()
		if err != nil {
			s.errLog.Printf("stats: login dedupe failed: %v", err)
		} else if !ok {
			return // already counted today
		}
	}

	if err := s.store.IncrementDailyLogin(ctx, day); err != nil {
		s.errLog.Printf("stats: daily login increment failed: %v", err)
	}
	if loc := s.lookupLocation(ctx, remoteIP); loc != "" {
		if err := s.store.IncrementGeoLogin(ctx, month, loc); err != nil {
			s.errLog.Printf("stats: geo login increment failed: %v", err)
		}
	}
}

// GeoLogins returns the per-location login counts for a month in
// "2006-01" form.
func (s *StatsService) GeoLogins(ctx context.Context, month string) (map[string]int64, error) {
	return s.store.GeoLogins(ctx, month)
}

// lookupLocation resolves an IP to "City, Region" via the configured
// endpoint.  Any failure returns "".
func (s *StatsService) lookupLocation(ctx context.Context, ip string) string {
	if s.geoURL == "" || ip == "" {
		return ""
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(s.geoURL, ip), nil)
	if err != nil {
		return ""
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return ""
	}
	var payload struct {
		City   string `json:"city"`
		Region string `json:"region"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.City == "" {
		return ""
	}
	if payload.Region != "" {
		return payload.City + ", " + payload.Region
	}
	return payload.City
}
