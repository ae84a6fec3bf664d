package enums

import "fmt"

// DebitBatch is one of the four predefined debit lots of a month.
type DebitBatch string

const (
	DebitBatchL1 DebitBatch = "L1"
	DebitBatchL2 DebitBatch = "L2"
	DebitBatchL3 DebitBatch = "L3"
	DebitBatchL4 DebitBatch = "L4"
)

var validDebitBatches = []DebitBatch{
	DebitBatchL1,
	DebitBatchL2,
	DebitBatchL3,
	DebitBatchL4,
}

var debitBatchDays = map[DebitBatch]int{
	DebitBatchL1: 1,
	DebitBatchL2: 8,
	DebitBatchL3: 15,
	DebitBatchL4: 22,
}

// String implements fmt.Stringer.
func (d DebitBatch) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DebitBatch.
func (d DebitBatch) IsValid() bool {
	for _, candidate := range validDebitBatches {
		if candidate == d {
			return true
		}
	}
	return false
}

// Day returns the fixed calendar day the batch maps to.
func (d DebitBatch) Day() (int, error) {
	day, ok := debitBatchDays[d]
	if !ok {
		return 0, fmt.Errorf("invalid debit batch %q", string(d))
	}
	return day, nil
}

// ParseDebitBatch converts raw input into a DebitBatch.
func ParseDebitBatch(value string) (DebitBatch, error) {
	for _, candidate := range validDebitBatches {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid debit batch %q", value)
}
