// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/insight/core"
)

// Column names as they appear in the header row.
const (
	ColCustomerID        = "CustomerID"
	ColAge               = "Age"
	ColGender            = "Gender"
	ColCountry           = "Country"
	ColIncome            = "Income"
	ColProductQuality    = "ProductQuality"
	ColServiceQuality    = "ServiceQuality"
	ColPurchaseFrequency = "PurchaseFrequency"
	ColFeedbackScore     = "FeedbackScore"
	ColLoyaltyLevel      = "LoyaltyLevel"
	ColSatisfactionScore = "SatisfactionScore"
)

// Columns lists the required columns in canonical order.
var Columns = []string{
	ColCustomerID, ColAge, ColGender, ColCountry, ColIncome,
	ColProductQuality, ColServiceQuality, ColPurchaseFrequency,
	ColFeedbackScore, ColLoyaltyLevel, ColSatisfactionScore,
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string) ([]core.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIngestion, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses header-driven CSV. Columns may appear in any order and extra
// columns are ignored. Returned records have their Summary derived.
func Load(r io.Reader) ([]core.Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ingestionError(1, 0, errors.New("empty input"))
		}
		return nil, parseError(err)
	}

	positions := make(map[string]int, len(header))
	for i, name := range header {
		// Spreadsheet exports sometimes prefix the first cell with a BOM
		positions[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}
	for _, col := range Columns {
		if _, ok := positions[col]; !ok {
			return nil, ingestionError(1, 0, fmt.Errorf("%w: %s", ErrMissingColumn, col))
		}
	}

	var records []core.Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseError(err)
		}

		p := rowParser{reader: reader, row: row, positions: positions}
		record := core.Record{
			CustomerID:        p.text(ColCustomerID),
			Age:               p.integer(ColAge),
			Gender:            p.text(ColGender),
			Country:           p.text(ColCountry),
			Income:            p.decimal(ColIncome),
			ProductQuality:    p.integer(ColProductQuality),
			ServiceQuality:    p.integer(ColServiceQuality),
			PurchaseFrequency: p.integer(ColPurchaseFrequency),
			FeedbackScore:     p.text(ColFeedbackScore),
			LoyaltyLevel:      p.text(ColLoyaltyLevel),
			SatisfactionScore: p.decimal(ColSatisfactionScore),
		}
		if p.err != nil {
			return nil, p.err
		}

		if err := core.ValidateRecord(&record); err != nil {
			line, _ := reader.FieldPos(0)
			return nil, ingestionError(line, 0, err)
		}
		records = append(records, core.DeriveSummary(record))
	}

	return records, nil
}

func parseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return ingestionError(pe.Line, pe.Column, pe.Err)
	}
	return fmt.Errorf("%w: %w", core.ErrIngestion, err)
}

// rowParser converts the cells of one row and keeps the first error.
type rowParser struct {
	reader    *csv.Reader
	row       []string
	positions map[string]int
	err       error
}

func (p *rowParser) cell(col string) (string, int) {
	i := p.positions[col]
	return strings.TrimSpace(p.row[i]), i
}

func (p *rowParser) fail(col string, field int, value string, err error) {
	if p.err != nil {
		return
	}
	line, column := p.reader.FieldPos(field)
	p.err = ingestionError(line, column, fmt.Errorf("%s %q: %w", col, value, err))
}

func (p *rowParser) text(col string) string {
	v, _ := p.cell(col)
	return v
}

func (p *rowParser) integer(col string) int {
	v, field := p.cell(col)
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(col, field, v, errors.Unwrap(err))
	}
	return n
}

func (p *rowParser) decimal(col string) float64 {
	v, field := p.cell(col)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(col, field, v, errors.Unwrap(err))
		return f
	}
	// ParseFloat accepts "NaN" and "Inf"
	if math.IsNaN(f) || math.IsInf(f, 0) {
		p.fail(col, field, v, ErrNotFinite)
	}
	return f
}
