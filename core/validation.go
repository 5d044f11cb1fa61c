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


package core

import (
	"fmt"
	"math"
)

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - CustomerID must not be empty
//   - Age, Income and PurchaseFrequency must not be negative
//   - ProductQuality and ServiceQuality must be within 0-10
//   - Income and SatisfactionScore must be finite
//   - SatisfactionScore must be a percentage (0-100)
//
// NOT validated:
//   - Summary (derived after validation)
//   - Categorical attributes (free text in the source data)
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.CustomerID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyCustomerID)
	}

	if record.Age < 0 {
		return fmt.Errorf("%w: %w: age %d", ErrInvalidRecord, ErrOutOfRange, record.Age)
	}
	if !isFinite(record.Income) || record.Income < 0 {
		return fmt.Errorf("%w: %w: income %.2f", ErrInvalidRecord, ErrOutOfRange, record.Income)
	}
	if !isRating(record.ProductQuality) {
		return fmt.Errorf("%w: %w: product quality %d", ErrInvalidRecord, ErrOutOfRange, record.ProductQuality)
	}
	if !isRating(record.ServiceQuality) {
		return fmt.Errorf("%w: %w: service quality %d", ErrInvalidRecord, ErrOutOfRange, record.ServiceQuality)
	}
	if record.PurchaseFrequency < 0 {
		return fmt.Errorf("%w: %w: purchase frequency %d", ErrInvalidRecord, ErrOutOfRange, record.PurchaseFrequency)
	}
	if !isFinite(record.SatisfactionScore) || record.SatisfactionScore < 0 || record.SatisfactionScore > 100 {
		return fmt.Errorf("%w: %w: satisfaction score %.1f", ErrInvalidRecord, ErrOutOfRange, record.SatisfactionScore)
	}

	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isRating(v int) bool {
	return v >= 0 && v <= 10
}
