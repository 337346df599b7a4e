package api

import "fmt"

// DataType selects which product the data endpoint serves.
type DataType string

const (
	DataISMR     DataType = "ismr"
	DataISMR1Min DataType = "ismr1min"
	DataSBF      DataType = "sbf"
	DataRINEX    DataType = "rinex"
)

// ParseDataType validates a user-supplied data type.
func ParseDataType(s string) (DataType, error) {
	switch DataType(s) {
	case DataISMR, DataISMR1Min, DataSBF, DataRINEX:
		return DataType(s), nil
	}
	return "", fmt.Errorf("api: unknown data type %q (want ismr, ismr1min, sbf, or rinex)", s)
}
