package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/entity"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/repository"
)

const (
	SheetOffers = "Offers"
	SheetStats  = "Match Stats"

	loadConcurrency = 4
)

// Service produces XLSX bytes for an owner's analyzed offers.
type Service struct {
	offers     repository.OfferRepository
	packages   repository.PackageRepository
	placements repository.PlacementRepository
	logger     *slog.Logger
}

func NewService(offers repository.OfferRepository, packages repository.PackageRepository, placements repository.PlacementRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{offers: offers, packages: packages, placements: placements, logger: logger}
}

type offerRows struct {
	offer    *entity.Offer
	packages []entity.PackageWithPlacements
}

// ExportOffersXLSX writes one row per package on the Offers sheet and one row per
// offer with its confidence tier counts on the Match Stats sheet. Offers without
// packages (still analyzing or failed) are left out.
func (s *Service) ExportOffersXLSX(ctx context.Context, ownerID string) ([]byte, error) {
	start := time.Now()
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner_id is required", common.ErrInvalidInput)
	}

	offers, err := s.offers.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}

	loaded := make([]offerRows, len(offers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, o := range offers {
		g.Go(func() error {
			pkgs, err := s.load(gctx, o.ID)
			if err != nil {
				return err
			}
			loaded[i] = offerRows{offer: o, packages: pkgs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", SheetOffers); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetStats); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	writeRow(f, SheetOffers, 1, "Offer", "Term", "Funding Goal", "Package", "Cost", "Display Benefits", "Matched Placements")
	writeRow(f, SheetStats, 1, "Offer", "Packages", "Links", "High", "Medium", "Low")

	row, statsRow, exported := 2, 2, 0
	for _, o := range loaded {
		if len(o.packages) == 0 {
			continue
		}
		exported++
		var links, high, medium, low int
		for _, p := range o.packages {
			cost := any("")
			if p.Cost != nil {
				cost = *p.Cost
			}
			matched := make([]string, 0, len(p.Placements))
			for _, l := range p.Placements {
				matched = append(matched, fmt.Sprintf("%s (%s)", l.CanonicalName, l.Confidence))
				switch l.Confidence {
				case "high":
					high++
				case "medium":
					medium++
				case "low":
					low++
				}
			}
			links += len(p.Placements)
			writeRow(f, SheetOffers, row,
				o.offer.Title, o.offer.Term, o.offer.FundingGoal, p.Name, cost,
				strings.Join(p.DisplayBenefits, "; "), strings.Join(matched, "; "))
			row++
		}
		writeRow(f, SheetStats, statsRow, o.offer.Title, len(o.packages), links, high, medium, low)
		statsRow++
	}

	_ = f.SetColWidth(SheetOffers, "A", "A", 34) // offer
	_ = f.SetColWidth(SheetOffers, "B", "B", 16) // term
	_ = f.SetColWidth(SheetOffers, "C", "C", 14) // goal
	_ = f.SetColWidth(SheetOffers, "D", "D", 24) // package
	_ = f.SetColWidth(SheetOffers, "E", "E", 12) // cost
	_ = f.SetColWidth(SheetOffers, "F", "G", 60)
	_ = f.SetColWidth(SheetStats, "A", "A", 34)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"owner_id", ownerID,
		"offers", exported,
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) load(ctx context.Context, offerID string) ([]entity.PackageWithPlacements, error) {
	pkgs, err := s.packages.ListByOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	out := make([]entity.PackageWithPlacements, 0, len(pkgs))
	for _, p := range pkgs {
		links, err := s.placements.ListLinks(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, entity.PackageWithPlacements{Package: *p, Placements: links})
	}
	return out, nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}
