package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tripnav/internal/model"
)

// Seed is the YAML catalog format used for local runs and demos:
//
//	lodgings:
//	  - id: harbor-inn
//	    name: Harbor Inn
//	    destination_id: 1
//	    area_id: 4
//	    currency: USD
//	    prices:
//	      - {from: 2025-12-01, to: 2025-12-31, price: 120.50}
//	      - {date: 2025-12-24, price: 180}
//	      - {date: 2025-12-25, available: false}
//
// Later rows override earlier ones for the same night.
type Seed struct {
	Lodgings []SeedLodging `yaml:"lodgings"`
}

type SeedLodging struct {
	ID            string      `yaml:"id"`
	Name          string      `yaml:"name"`
	DestinationID int64       `yaml:"destination_id"`
	AreaID        *int64      `yaml:"area_id"`
	Currency      string      `yaml:"currency"`
	Prices        []SeedPrice `yaml:"prices"`
}

type SeedPrice struct {
	Date      string  `yaml:"date"`
	From      string  `yaml:"from"`
	To        string  `yaml:"to"`
	Price     float64 `yaml:"price"`
	Available *bool   `yaml:"available"`
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(r io.Reader) (Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return s, nil
}

// LoadSeed reads a seed file into a new Memory catalog.
func LoadSeed(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ParseSeed(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	quotes, err := s.Quotes()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m := NewMemory()
	m.Add(quotes...)
	return m, nil
}

// Quotes expands every price row into nightly quotes. Rows are stamped with
// increasing record times so later rows win.
func (s Seed) Quotes() ([]Quote, error) {
	var out []Quote
	stamp := time.Unix(0, 0).UTC()
	for i, l := range s.Lodgings {
		if l.ID == "" || l.DestinationID <= 0 {
			return nil, fmt.Errorf("lodgings[%d]: id and destination_id are required", i)
		}
		currency := l.Currency
		if currency == "" {
			currency = "USD"
		}
		name := l.Name
		if name == "" {
			name = l.ID
		}
		for j, p := range l.Prices {
			from, to, err := p.span()
			if err != nil {
				return nil, fmt.Errorf("lodgings[%d].prices[%d]: %w", i, j, err)
			}
			available := p.Available == nil || *p.Available
			if available && p.Price <= 0 {
				return nil, fmt.Errorf("lodgings[%d].prices[%d]: price must be positive", i, j)
			}
			stamp = stamp.Add(time.Second)
			for d := from; !d.After(to); d = d.AddDays(1) {
				out = append(out, Quote{
					DestinationID: l.DestinationID,
					AreaID:        l.AreaID,
					LodgingID:     l.ID,
					LodgingName:   name,
					Date:          d,
					Price:         model.MoneyFromFloat(p.Price),
					Currency:      currency,
					Available:     available,
					RecordedAt:    stamp,
				})
			}
		}
	}
	return out, nil
}

func (p SeedPrice) span() (model.Date, model.Date, error) {
	if p.Date != "" {
		d, err := model.ParseDate(p.Date)
		return d, d, err
	}
	if p.From == "" || p.To == "" {
		return model.Date{}, model.Date{}, errors.New("either date or from/to is required")
	}
	from, err := model.ParseDate(p.From)
	if err != nil {
		return model.Date{}, model.Date{}, err
	}
	to, err := model.ParseDate(p.To)
	if err != nil {
		return model.Date{}, model.Date{}, err
	}
	if to.Before(from) {
		return model.Date{}, model.Date{}, errors.New("to is before from")
	}
	return from, to, nil
}
