package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
)

// numFields is the number of fields a line must carry. Extra trailing fields are ignored.
const numFields = 9

// Reader yields ClaimsRecord values one line at a time. It is not restartable;
// reopen the source to read again.
type Reader struct {
	csv *csv.Reader
}

// NewReader returns a Reader over r splitting fields on sep.
func NewReader(r io.Reader, sep rune) *Reader {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true
	return &Reader{csv: reader}
}

// Read returns the next record, or io.EOF when the input is exhausted.
// Blank lines are skipped. A malformed line yields *errors.DataFormatError.
func (r *Reader) Read() (ClaimsRecord, error) {
	for {
		fields, err := r.csv.Read()
		if err == io.EOF {
			return ClaimsRecord{}, io.EOF
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return ClaimsRecord{}, errors.NewDataFormatError(pe.Line, "", "", pe.Err.Error())
			}
			return ClaimsRecord{}, errors.Wrap(err, "read claims")
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		line, _ := r.csv.FieldPos(0)
		return parseRecord(fields, line)
	}
}

func parseRecord(fields []string, line int) (ClaimsRecord, error) {
	if len(fields) < numFields {
		return ClaimsRecord{}, errors.NewDataFormatError(line, "", "",
			fmt.Sprintf("expected %d fields, got %d", numFields, len(fields)))
	}

	policies, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil {
		return ClaimsRecord{}, errors.NewDataFormatError(line, ColPoliciesPerDocument, fields[3], "not an integer")
	}
	claims, err := parseFloat(fields[7])
	if err != nil {
		return ClaimsRecord{}, errors.NewDataFormatError(line, ColThreeYearClaims, fields[7], err.Error())
	}
	premium, err := parseFloat(fields[8])
	if err != nil {
		return ClaimsRecord{}, errors.NewDataFormatError(line, ColPremium, fields[8], err.Error())
	}

	return ClaimsRecord{
		InceptionDate:       fields[0],
		ExpirationDate:      fields[1],
		PolicyStatus:        fields[2],
		PoliciesPerDocument: policies,
		NewRenewal:          fields[4],
		BusinessTypeCode:    fields[5],
		PostalCode:          fields[6],
		ThreeYearClaims:     claims,
		Premium:             premium,
	}, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

// Records returns a lazy sequence over r. Iteration stops after the first error.
func Records(r io.Reader, sep rune) iter.Seq2[ClaimsRecord, error] {
	return func(yield func(ClaimsRecord, error) bool) {
		reader := NewReader(r, sep)
		for {
			rec, err := reader.Read()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// LoadFile reads every record of the file at path. The first malformed line
// aborts the load and its error carries the path.
func LoadFile(path string, sep rune) ([]ClaimsRecord, error) {
	logger := log.GetLoggerWithName("dataset")
	start := time.Now()

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open claims file %s", path)
	}
	defer file.Close()

	var records []ClaimsRecord
	for rec, err := range Records(file, sep) {
		if err != nil {
			var dfe *errors.DataFormatError
			if errors.As(err, &dfe) {
				dfe.Path = path
			}
			return nil, err
		}
		records = append(records, rec)
	}

	logger.Info("claims loaded",
		log.PathKey, path,
		log.SamplesKey, len(records),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return records, nil
}
