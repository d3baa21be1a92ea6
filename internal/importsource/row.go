package importsource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ignite/debt-recovery/internal/pkg/apperr"
)

// Field is a canonical import column.
type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldSubject Field = "debtSubject"
	FieldAmount  Field = "debtAmount"
)

var requiredFields = []Field{FieldName, FieldEmail, FieldSubject, FieldAmount}

// headerAliases maps lower-cased header text to its canonical field.
var headerAliases = map[string]Field{
	"name":          FieldName,
	"full name":     FieldName,
	"full_name":     FieldName,
	"fullname":      FieldName,
	"email":         FieldEmail,
	"e-mail":        FieldEmail,
	"email address": FieldEmail,
	"email_address": FieldEmail,
	"debtsubject":   FieldSubject,
	"debt subject":  FieldSubject,
	"debt_subject":  FieldSubject,
	"subject":       FieldSubject,
	"debtamount":    FieldAmount,
	"debt amount":   FieldAmount,
	"debt_amount":   FieldAmount,
	"amount":        FieldAmount,
}

// Row is one data record. Number is the record's position among non-blank
// data records plus 2, so the first data row is 2 whatever blank lines
// precede it.
type Row struct {
	Number  int
	Name    string
	Email   string
	Subject string
	Amount  string
}

// RowError reports a single record the source could not decode.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// RowReader yields rows until io.EOF. A *RowError return skips one record;
// any other error ends the read.
type RowReader interface {
	Read() (Row, error)
	Close() error
}

// columnMap records which source column feeds each field.
type columnMap map[Field]int

func mapHeader(header []string) (columnMap, error) {
	cols := make(columnMap, len(requiredFields))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if f, ok := headerAliases[key]; ok {
			if _, seen := cols[f]; !seen {
				cols[f] = i
			}
		}
	}
	var missing []string
	for _, f := range requiredFields {
		if _, ok := cols[f]; !ok {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperr.Errorf(apperr.Validation, "importsource.header",
			"missing required columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func (m columnMap) row(number int, record []string) Row {
	get := func(f Field) string {
		if i := m[f]; i < len(record) {
			return record[i]
		}
		return ""
	}
	return Row{
		Number:  number,
		Name:    get(FieldName),
		Email:   get(FieldEmail),
		Subject: get(FieldSubject),
		Amount:  get(FieldAmount),
	}
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
