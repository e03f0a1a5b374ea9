package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/labetl/internal/domain"
)

// Required source columns, referenced by name.
const (
	ColUserID          = "user_id"
	ColCompoundID      = "compound_id"
	ColSignupDate      = "signup_date"
	ColRunTime         = "experiment_run_time"
	ColCompoundIDs     = "experiment_compound_ids"
	ColExperimentCount = "experiment_count"
	ColAvgRunTime      = "avg_experiment_run_time"
)

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006/01/02",
	"01/02/2006",
}

// link is one (user, compound) pair fanned out from a multi-valued
// experiment_compound_ids field. Transient; exists only during derivation.
type link struct {
	userID     string
	compoundID string
}

// Derive computes the per-user feature table from the three cleaned source
// tables. It is a pure transformation: three derived features (experiment
// count, average run time, most-common compound) are assembled with the user
// and compound attributes through union-of-keys joins, then the key and date
// columns are coerced to their declared types.
//
// Output columns: all user columns, experiment_count, avg_experiment_run_time,
// compound_id, all compound attribute columns.
func Derive(users, compounds, experiments domain.Table) (domain.Table, error) {
	if err := requireColumns(users, "users", ColUserID, ColSignupDate); err != nil {
		return domain.Table{}, err
	}
	if err := requireColumns(compounds, "compounds", ColCompoundID); err != nil {
		return domain.Table{}, err
	}
	if err := requireColumns(experiments, "experiments", ColUserID, ColRunTime, ColCompoundIDs); err != nil {
		return domain.Table{}, err
	}

	links := fanOutCompoundLinks(experiments)
	counts := experimentCounts(experiments)
	means, err := averageRunTimes(experiments)
	if err != nil {
		return domain.Table{}, err
	}
	mostCommon := mostCommonCompounds(links)

	assembled := assemble(users, compounds, experiments, counts, means, mostCommon)
	return coerceFeatureTable(assembled)
}

func requireColumns(t domain.Table, source string, names ...string) error {
	for _, name := range names {
		if t.ColumnIndex(name) < 0 {
			return &domain.DerivationError{
				Detail: fmt.Sprintf("%s table is missing required column %q", source, name),
			}
		}
	}
	return nil
}

// fanOutCompoundLinks splits experiment_compound_ids on ';' and emits one
// link per token. An empty or single-token field still yields one link.
func fanOutCompoundLinks(experiments domain.Table) []link {
	userIdx := experiments.ColumnIndex(ColUserID)
	idsIdx := experiments.ColumnIndex(ColCompoundIDs)

	var links []link
	for _, row := range experiments.Rows {
		userID := cellString(row[userIdx])
		for _, token := range strings.Split(cellString(row[idsIdx]), ";") {
			links = append(links, link{userID: userID, compoundID: strings.TrimSpace(token)})
		}
	}
	return links
}

// experimentCounts is feature 1: rows per user in the experiments table.
func experimentCounts(experiments domain.Table) map[string]int {
	userIdx := experiments.ColumnIndex(ColUserID)
	counts := make(map[string]int)
	for _, row := range experiments.Rows {
		counts[cellString(row[userIdx])]++
	}
	return counts
}

// averageRunTimes is feature 2: arithmetic mean of experiment_run_time per
// user. Run times that do not parse as numbers fail the derivation.
func averageRunTimes(experiments domain.Table) (map[string]float64, error) {
	userIdx := experiments.ColumnIndex(ColUserID)
	runTimeIdx := experiments.ColumnIndex(ColRunTime)

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, row := range experiments.Rows {
		raw := cellString(row[runTimeIdx])
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &domain.DerivationError{
				Detail: fmt.Sprintf("experiment_run_time value %q is not numeric", raw),
				Err:    err,
			}
		}
		userID := cellString(row[userIdx])
		sums[userID] += value
		counts[userID]++
	}

	means := make(map[string]float64, len(sums))
	for userID, sum := range sums {
		means[userID] = sum / float64(counts[userID])
	}
	return means, nil
}

// mostCommonCompounds is feature 3. Per user, link occurrences are counted
// per compound. When the maximum count is 1 nothing actually repeats, so
// every distinct compound counts as most common and all are emitted. When
// the maximum is greater than 1 a single compound is emitted; ties at the
// maximum are broken by compound id ascending so reruns are reproducible.
func mostCommonCompounds(links []link) map[string][]string {
	type pairCount struct {
		compoundID string
		count      int
	}

	perUser := make(map[string]map[string]int)
	for _, l := range links {
		if perUser[l.userID] == nil {
			perUser[l.userID] = make(map[string]int)
		}
		perUser[l.userID][l.compoundID]++
	}

	result := make(map[string][]string, len(perUser))
	for userID, compoundCounts := range perUser {
		pairs := make([]pairCount, 0, len(compoundCounts))
		maxCount := 0
		for compoundID, count := range compoundCounts {
			pairs = append(pairs, pairCount{compoundID: compoundID, count: count})
			if count > maxCount {
				maxCount = count
			}
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].count != pairs[j].count {
				return pairs[i].count > pairs[j].count
			}
			return pairs[i].compoundID < pairs[j].compoundID
		})

		if maxCount == 1 {
			// All tied at the minimum: every compound is "most common".
			compoundIDs := make([]string, 0, len(pairs))
			for _, p := range pairs {
				compoundIDs = append(compoundIDs, p.compoundID)
			}
			sort.Strings(compoundIDs)
			result[userID] = dedupe(compoundIDs)
			continue
		}
		result[userID] = []string{pairs[0].compoundID}
	}
	return result
}

func dedupe(values []string) []string {
	out := values[:0]
	var prev string
	for i, v := range values {
		if i == 0 || v != prev {
			out = append(out, v)
		}
		prev = v
	}
	return out
}

// assemble performs the union-of-keys joins. Users keep their source order;
// users present only in the experiments table follow in first-observed
// order. A user with several most-common compounds fans out into one row per
// compound, ordered by compound id. Compound attributes join on compound_id;
// a compound missing from the compounds table leaves its attributes null so
// every feature row still traces back to exactly one user.
func assemble(
	users, compounds, experiments domain.Table,
	counts map[string]int,
	means map[string]float64,
	mostCommon map[string][]string,
) domain.Table {
	userIdx := users.ColumnIndex(ColUserID)
	expUserIdx := experiments.ColumnIndex(ColUserID)
	compoundIdx := compounds.ColumnIndex(ColCompoundID)

	// Union of user keys: users table order first, then experiment-only users.
	var userKeys []string
	seen := make(map[string]bool)
	userRows := make(map[string][]any)
	for _, row := range users.Rows {
		key := cellString(row[userIdx])
		if !seen[key] {
			seen[key] = true
			userKeys = append(userKeys, key)
		}
		userRows[key] = row
	}
	for _, row := range experiments.Rows {
		key := cellString(row[expUserIdx])
		if !seen[key] {
			seen[key] = true
			userKeys = append(userKeys, key)
		}
	}

	compoundRows := make(map[string][]any)
	for _, row := range compounds.Rows {
		compoundRows[cellString(row[compoundIdx])] = row
	}

	columns := make([]domain.Column, 0, len(users.Columns)+3+len(compounds.Columns))
	columns = append(columns, users.Columns...)
	columns = append(columns,
		domain.Column{Name: ColExperimentCount, Type: domain.TypeInteger},
		domain.Column{Name: ColAvgRunTime, Type: domain.TypeFloat},
		domain.Column{Name: ColCompoundID, Type: domain.TypeInteger},
	)
	for i, col := range compounds.Columns {
		if i == compoundIdx {
			continue
		}
		columns = append(columns, col)
	}

	out := domain.NewTable(columns)
	for _, userKey := range userKeys {
		compoundIDs := mostCommon[userKey]
		if len(compoundIDs) == 0 {
			compoundIDs = []string{""} // no experiments: one row, null compound
		}
		for _, compoundID := range compoundIDs {
			row := make([]any, 0, len(columns))

			if userRow, ok := userRows[userKey]; ok {
				for i := range users.Columns {
					if i < len(userRow) {
						row = append(row, userRow[i])
					} else {
						row = append(row, nil)
					}
				}
			} else {
				// User exists only in the experiments table.
				for i := range users.Columns {
					if i == userIdx {
						row = append(row, userKey)
					} else {
						row = append(row, nil)
					}
				}
			}

			if count, ok := counts[userKey]; ok {
				row = append(row, int64(count))
			} else {
				row = append(row, nil)
			}
			if mean, ok := means[userKey]; ok {
				row = append(row, mean)
			} else {
				row = append(row, nil)
			}

			if compoundID == "" {
				row = append(row, nil)
			} else {
				row = append(row, compoundID)
			}

			compoundRow, ok := compoundRows[compoundID]
			for i := range compounds.Columns {
				if i == compoundIdx {
					continue
				}
				if ok && i < len(compoundRow) {
					row = append(row, compoundRow[i])
				} else {
					row = append(row, nil)
				}
			}

			out = out.AppendRow(row)
		}
	}
	return out
}

// coerceFeatureTable fixes the declared types of the assembled table:
// user_id and compound_id become int64, signup_date becomes a timestamp, and
// the remaining passthrough attribute columns get a type inferred from their
// values. Null cells stay null; a non-null key that does not parse as an
// integer fails the derivation rather than silently degrading to text.
func coerceFeatureTable(t domain.Table) (domain.Table, error) {
	columns := append([]domain.Column(nil), t.Columns...)
	rows := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = append([]any(nil), row...)
	}

	for colIdx, col := range columns {
		switch col.Name {
		case ColUserID, ColCompoundID:
			columns[colIdx].Type = domain.TypeInteger
			for rowIdx := range rows {
				cell := rows[rowIdx][colIdx]
				if cell == nil {
					continue
				}
				if _, ok := cell.(int64); ok {
					continue
				}
				value, err := coerceInt64(cellString(cell))
				if err != nil {
					return domain.Table{}, &domain.DerivationError{
						Detail: fmt.Sprintf("%s value %q is not an integer", col.Name, cellString(cell)),
						Err:    err,
					}
				}
				rows[rowIdx][colIdx] = value
			}
		case ColSignupDate:
			columns[colIdx].Type = domain.TypeTimestamp
			for rowIdx := range rows {
				cell := rows[rowIdx][colIdx]
				raw := cellString(cell)
				if cell == nil || raw == "" {
					rows[rowIdx][colIdx] = nil
					continue
				}
				ts, err := parseTimestamp(raw)
				if err != nil {
					return domain.Table{}, &domain.DerivationError{
						Detail: fmt.Sprintf("signup_date value %q is not a date", raw),
						Err:    err,
					}
				}
				rows[rowIdx][colIdx] = ts
			}
		case ColExperimentCount, ColAvgRunTime:
			// Already typed during assembly.
		default:
			inferred := inferColumnType(colIdx, rows)
			columns[colIdx].Type = inferred
			if inferred == domain.TypeString {
				continue
			}
			for rowIdx := range rows {
				cell := rows[rowIdx][colIdx]
				raw := cellString(cell)
				if cell == nil || raw == "" {
					rows[rowIdx][colIdx] = nil
					continue
				}
				rows[rowIdx][colIdx] = convertCell(inferred, raw)
			}
		}
	}

	return domain.Table{Columns: columns, Rows: rows}, nil
}

// inferColumnType profiles one passthrough column: a type is only picked
// when every non-empty value parses as it, preferring the narrowest.
func inferColumnType(col int, rows [][]any) domain.ColumnType {
	isBool := true
	isInt := true
	isFloat := true
	isTimestamp := true
	hasValue := false

	for _, row := range rows {
		cell := row[col]
		if cell == nil {
			continue
		}
		if _, ok := cell.(string); !ok {
			return domain.TypeString
		}
		value := strings.TrimSpace(cell.(string))
		if value == "" {
			continue
		}
		hasValue = true

		if !looksLikeBool(value) {
			isBool = false
		}
		if !looksLikeInt(value) {
			isInt = false
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			isFloat = false
		}
		if _, err := parseTimestamp(value); err != nil {
			isTimestamp = false
		}
	}

	switch {
	case !hasValue:
		return domain.TypeString
	case isBool:
		return domain.TypeBoolean
	case isInt:
		return domain.TypeInteger
	case isFloat:
		return domain.TypeFloat
	case isTimestamp:
		return domain.TypeTimestamp
	default:
		return domain.TypeString
	}
}

func convertCell(fieldType domain.ColumnType, raw string) any {
	switch fieldType {
	case domain.TypeBoolean:
		switch strings.ToLower(raw) {
		case "1", "yes", "y":
			return true
		case "0", "no", "n":
			return false
		}
		value, _ := strconv.ParseBool(strings.ToLower(raw))
		return value
	case domain.TypeInteger:
		value, _ := coerceInt64(raw)
		return value
	case domain.TypeFloat:
		value, _ := strconv.ParseFloat(raw, 64)
		return value
	case domain.TypeTimestamp:
		value, _ := parseTimestamp(raw)
		return value
	default:
		return raw
	}
}

func looksLikeBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "false", "1", "0", "yes", "no":
		return true
	}
	_, err := strconv.ParseBool(strings.ToLower(value))
	return err == nil
}

func looksLikeInt(value string) bool {
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return true
	}
	// Allow float representations that convert losslessly.
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return math.Mod(f, 1) == 0
	}
	return false
}

func coerceInt64(raw string) (int64, error) {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.Mod(f, 1) != 0 {
		return 0, fmt.Errorf("%q has a fractional part", raw)
	}
	return int64(f), nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}

func cellString(cell any) string {
	if cell == nil {
		return ""
	}
	if s, ok := cell.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", cell)
}
