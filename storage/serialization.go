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

package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/insight/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: id: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalVector serializes a vector as a length prefix followed by raw float32s.
func MarshalVector(vector []float32) []byte {
	buf := make([]byte, sizeVector(vector))
	marshalVector(vector, buf)
	return buf
}

// UnmarshalVector deserializes a vector written by MarshalVector.
func UnmarshalVector(data []byte) ([]float32, error) {
	v, _, err := unmarshalVector(data)
	if err != nil {
		return nil, fmt.Errorf("%w: vector: %w", ErrSerializationFailed, err)
	}
	return v, nil
}

// MarshalEntry serializes an indexed entry (record and vector) to bytes.
func MarshalEntry(entry *core.Entry) []byte {
	r := &entry.Record
	size := ord.String.Size(r.CustomerID) +
		varint.Int.Size(r.Age) +
		ord.String.Size(r.Gender) +
		ord.String.Size(r.Country) +
		raw.Float64.Size(r.Income) +
		varint.Int.Size(r.ProductQuality) +
		varint.Int.Size(r.ServiceQuality) +
		varint.Int.Size(r.PurchaseFrequency) +
		ord.String.Size(r.FeedbackScore) +
		ord.String.Size(r.LoyaltyLevel) +
		raw.Float64.Size(r.SatisfactionScore) +
		ord.String.Size(r.Summary) +
		sizeVector(entry.Vector)

	buf := make([]byte, size)
	n := ord.String.Marshal(r.CustomerID, buf)
	n += varint.Int.Marshal(r.Age, buf[n:])
	n += ord.String.Marshal(r.Gender, buf[n:])
	n += ord.String.Marshal(r.Country, buf[n:])
	n += raw.Float64.Marshal(r.Income, buf[n:])
	n += varint.Int.Marshal(r.ProductQuality, buf[n:])
	n += varint.Int.Marshal(r.ServiceQuality, buf[n:])
	n += varint.Int.Marshal(r.PurchaseFrequency, buf[n:])
	n += ord.String.Marshal(r.FeedbackScore, buf[n:])
	n += ord.String.Marshal(r.LoyaltyLevel, buf[n:])
	n += raw.Float64.Marshal(r.SatisfactionScore, buf[n:])
	n += ord.String.Marshal(r.Summary, buf[n:])
	marshalVector(entry.Vector, buf[n:])
	return buf
}

// UnmarshalEntry deserializes an entry written by MarshalEntry.
func UnmarshalEntry(data []byte) (*core.Entry, error) {
	var (
		entry core.Entry
		r     = &entry.Record
		d     = decoder{data: data}
	)
	r.CustomerID = d.readString()
	r.Age = d.readInt()
	r.Gender = d.readString()
	r.Country = d.readString()
	r.Income = d.readFloat64()
	r.ProductQuality = d.readInt()
	r.ServiceQuality = d.readInt()
	r.PurchaseFrequency = d.readInt()
	r.FeedbackScore = d.readString()
	r.LoyaltyLevel = d.readString()
	r.SatisfactionScore = d.readFloat64()
	r.Summary = d.readString()
	if d.err == nil {
		entry.Vector, _, d.err = unmarshalVector(d.data[d.off:])
	}
	if d.err != nil {
		return nil, fmt.Errorf("%w: entry: %w", ErrSerializationFailed, d.err)
	}
	return &entry, nil
}

func sizeVector(vector []float32) int {
	size := varint.Int.Size(len(vector))
	for _, f := range vector {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalVector(vector []float32, buf []byte) int {
	n := varint.Int.Marshal(len(vector), buf)
	for _, f := range vector {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	return n
}

func unmarshalVector(data []byte) ([]float32, int, error) {
	length, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, n, err
	}
	if length < 0 || length > len(data)-n {
		return nil, n, ErrTruncatedData
	}
	vector := make([]float32, length)
	for i := range vector {
		f, m, err := raw.Float32.Unmarshal(data[n:])
		if err != nil {
			return nil, n, err
		}
		vector[i] = f
		n += m
	}
	return vector, n, nil
}

// decoder reads fields sequentially and keeps the first error.
type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) readString() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.data[d.off:])
	d.off += n
	d.err = err
	return v
}

func (d *decoder) readInt() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.data[d.off:])
	d.off += n
	d.err = err
	return v
}

func (d *decoder) readFloat64() float64 {
	if d.err != nil {
		return 0
	}
	v, n, err := raw.Float64.Unmarshal(d.data[d.off:])
	d.off += n
	d.err = err
	return v
}
