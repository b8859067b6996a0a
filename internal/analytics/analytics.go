package analytics

import (
	"context"
	"log"
	"time"

	"shipline/internal/api"
	"shipline/internal/domain"
)

// Service computes the shipper's dashboard figures from the listing and
// payment endpoints. The backend has no aggregate endpoints, so it pages
// through the lists client-side, same as the app did.
type Service struct {
	api    *api.Client
	userID int64
}

const pageSize = 100

func New(client *api.Client, userID int64) *Service {
	return &Service{api: client, userID: userID}
}

// StatusShares returns the percentage of the shipper's shipments in each
// status. Every status, WAITING included, is counted through the
// shipper-scoped list so the shared unassigned pool never inflates the
// chart. A status whose query fails counts as zero rather than failing the
// whole chart.
func (s *Service) StatusShares(ctx context.Context) (map[string]float64, error) {
	counts := make(map[string]int, len(domain.Statuses))
	total := 0
	for _, status := range domain.Statuses {
		page, err := s.api.ListShipments(ctx, api.ShipmentQuery{
			Page:   1,
			Limit:  pageSize,
			Status: status,
			UserID: s.userID,
			Scoped: true,
		})
		if err != nil {
			log.Printf("analytics: counting %s shipments: %v", status, err)
			counts[status] = 0
			continue
		}
		counts[status] = page.Total
		total += page.Total
	}
	shares := make(map[string]float64, len(counts))
	for status, count := range counts {
		if total > 0 {
			shares[status] = float64(count) / float64(total) * 100
		} else {
			shares[status] = 0
		}
	}
	return shares, nil
}

// DayStat is one day of the month view: delivered orders and the revenue
// their payments add up to.
type DayStat struct {
	Day     int
	Orders  int
	Revenue float64
}

// MonthSeries builds the per-day series of successful shipments for a month,
// paging through the full SUCCESS list and joining payment amounts.
func (s *Service) MonthSeries(ctx context.Context, year int, month time.Month) ([]DayStat, error) {
	days := daysIn(year, month)
	stats := make([]DayStat, days)
	for i := range stats {
		stats[i].Day = i + 1
	}

	page := 1
	totalPages := 1
	for page <= totalPages {
		res, err := s.api.ListShipments(ctx, api.ShipmentQuery{
			Page:   page,
			Limit:  pageSize,
			Status: domain.StatusSuccess,
			UserID: s.userID,
		})
		if err != nil {
			return nil, err
		}
		totalPages = res.TotalPage
		for _, shipment := range res.ListShipment {
			d := shipment.DateCreated
			if d.Year() != year || d.Month() != month {
				continue
			}
			day := d.Day() - 1
			stats[day].Orders++
			if shipment.PaymentID == 0 {
				continue
			}
			payment, err := s.api.GetPayment(ctx, shipment.PaymentID)
			if err != nil {
				log.Printf("analytics: payment %d: %v", shipment.PaymentID, err)
				continue
			}
			stats[day].Revenue += payment.Amount
		}
		page++
	}
	return stats, nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
