// Package ingest parses CSV batch uploads into domain records.
//
// Upload validation is deliberately strict: a single bad row rejects the
// whole file, naming the 1-based data row and the cause. Extra columns are
// ignored; short rows fail at the row level, not the file level.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/opensource-finance/creditx/internal/domain"
)

var trueValues = map[string]bool{"true": true, "1": true, "yes": true, "y": true}
var falseValues = map[string]bool{"false": true, "0": true, "no": true, "n": true}

// SubmissionColumns lists the required submission CSV columns.
var SubmissionColumns = []string{
	"submission_id",
	"broker",
	"sector",
	"exposure_limit",
	"debtor_days",
	"financials_attached",
	"years_trading",
	"broker_hit_rate",
	"requested_cov_pct",
	"has_judgements",
}

// PolicyColumns lists the required policy CSV columns.
var PolicyColumns = []string{
	"policy_id",
	"sector",
	"current_premium",
	"limit",
	"utilization_pct",
	"claims_last_24m_cnt",
	"claims_ratio_24m",
	"days_to_expiry",
	"requested_change_pct",
	"broker",
}

// ParseSubmissionsCSV parses a submissions CSV upload.
func ParseSubmissionsCSV(filename string, r io.Reader) ([]domain.Submission, error) {
	rows, err := parseCSV(filename, r, SubmissionColumns, "submissions")
	if err != nil {
		return nil, err
	}

	subs := make([]domain.Submission, 0, len(rows))
	for i, row := range rows {
		sub, err := convertSubmission(row)
		if err != nil {
			return nil, rowError(i+1, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// ParsePoliciesCSV parses a policies CSV upload.
func ParsePoliciesCSV(filename string, r io.Reader) ([]domain.Policy, error) {
	rows, err := parseCSV(filename, r, PolicyColumns, "policies")
	if err != nil {
		return nil, err
	}

	pols := make([]domain.Policy, 0, len(rows))
	for i, row := range rows {
		pol, err := convertPolicy(row)
		if err != nil {
			return nil, rowError(i+1, err)
		}
		pols = append(pols, pol)
	}
	return pols, nil
}

type row map[string]string

// parseCSV reads the upload into header-keyed rows, applying the structural
// checks that precede any per-row conversion.
func parseCSV(filename string, r io.Reader, required []string, fileType string) ([]row, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return nil, fmt.Errorf("File must be a CSV file")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("CSV file must be UTF-8 encoded")
	}

	reader := csv.NewReader(bytes.NewReader(data))
	// Short and long rows are handled per row, not rejected by the reader.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty or missing a header row")
	}
	if err != nil {
		return nil, fmt.Errorf("CSV file is empty or missing a header row")
	}

	// Duplicate column names resolve to the rightmost occurrence.
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[name] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := positions[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		all := append([]string(nil), required...)
		sort.Strings(all)
		return nil, fmt.Errorf("Missing required columns in %s CSV: %s. Required columns: %s",
			fileType, strings.Join(missing, ", "), strings.Join(all, ", "))
	}

	var rows []row
	index := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		index++
		if err != nil {
			return nil, rowError(index, err)
		}

		m := make(row, len(positions))
		for name, pos := range positions {
			if pos < len(record) {
				m[name] = record[pos]
			}
		}
		rows = append(rows, m)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty or has no data rows")
	}

	return rows, nil
}

func rowError(index int, cause error) error {
	return fmt.Errorf("Error parsing row %d: %v. Please check data types and required fields.", index, cause)
}

func convertSubmission(m row) (domain.Submission, error) {
	if err := requireFields(m, SubmissionColumns); err != nil {
		return domain.Submission{}, err
	}

	exposure, err := parseFloat(m["exposure_limit"])
	if err != nil {
		return domain.Submission{}, err
	}
	debtorDays, err := parseFloat(m["debtor_days"])
	if err != nil {
		return domain.Submission{}, err
	}
	years, err := parseFloat(m["years_trading"])
	if err != nil {
		return domain.Submission{}, err
	}
	hitRate, err := parseFloat(m["broker_hit_rate"])
	if err != nil {
		return domain.Submission{}, err
	}
	covPct, err := parseFloat(m["requested_cov_pct"])
	if err != nil {
		return domain.Submission{}, err
	}

	return domain.Submission{
		SubmissionID:       m["submission_id"],
		Broker:             m["broker"],
		Sector:             domain.Sector(m["sector"]),
		ExposureLimit:      exposure,
		DebtorDays:         debtorDays,
		FinancialsAttached: parseBool(m["financials_attached"]),
		YearsTrading:       years,
		BrokerHitRate:      hitRate,
		RequestedCovPct:    covPct,
		HasJudgements:      parseBool(m["has_judgements"]),
	}, nil
}

func convertPolicy(m row) (domain.Policy, error) {
	if err := requireFields(m, PolicyColumns); err != nil {
		return domain.Policy{}, err
	}

	premium, err := parseFloat(m["current_premium"])
	if err != nil {
		return domain.Policy{}, err
	}
	limit, err := parseFloat(m["limit"])
	if err != nil {
		return domain.Policy{}, err
	}
	utilization, err := parseFloat(m["utilization_pct"])
	if err != nil {
		return domain.Policy{}, err
	}
	claims, err := parseInt(m["claims_last_24m_cnt"])
	if err != nil {
		return domain.Policy{}, err
	}
	claimsRatio, err := parseFloat(m["claims_ratio_24m"])
	if err != nil {
		return domain.Policy{}, err
	}
	daysToExpiry, err := parseFloat(m["days_to_expiry"])
	if err != nil {
		return domain.Policy{}, err
	}
	changePct, err := parseFloat(m["requested_change_pct"])
	if err != nil {
		return domain.Policy{}, err
	}

	return domain.Policy{
		PolicyID:           m["policy_id"],
		Sector:             domain.Sector(m["sector"]),
		CurrentPremium:     premium,
		Limit:              limit,
		UtilizationPct:     utilization,
		ClaimsLast24mCnt:   claims,
		ClaimsRatio24m:     claimsRatio,
		DaysToExpiry:       daysToExpiry,
		RequestedChangePct: changePct,
		Broker:             m["broker"],
	}, nil
}

// requireFields rejects the row on its first blank or absent required field.
func requireFields(m row, required []string) error {
	for _, field := range required {
		if strings.TrimSpace(m[field]) == "" {
			return fmt.Errorf("Missing required field: %s", field)
		}
	}
	return nil
}

// parseBool accepts the relaxed upload vocabulary; anything unrecognized
// is false.
func parseBool(value string) bool {
	lowered := strings.ToLower(strings.TrimSpace(value))
	if trueValues[lowered] {
		return true
	}
	if falseValues[lowered] {
		return false
	}
	return false
}

func parseFloat(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}

func parseInt(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return n, nil
}
