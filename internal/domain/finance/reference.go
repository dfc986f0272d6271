package finance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// ReferencePrefix starts every receipt reference
	ReferencePrefix = "REC"
	// DefaultClassCodeLength caps the class code part of a reference
	DefaultClassCodeLength = 6
	// GeneralClassCode is used for revenues not tied to a class
	GeneralClassCode = "GEN"
	// DefaultTypeLetter is used when a fee revenue has no kind
	DefaultTypeLetter = "A"

	ordinalWidth = 4
)

// ReceiptScope identifies the sequence a new reference is drawn from
type ReceiptScope struct {
	AcademicYear string      `json:"academic_year"`
	ClassName    string      `json:"class_name"`
	Kind         RevenueKind `json:"kind"`
}

// SequenceKey is the normalized counter key for one reference scope.
// Prefix is the type letter for fee revenues and empty otherwise, so lettered
// and unlettered references never share a counter.
type SequenceKey struct {
	SchoolID  uuid.UUID
	YearCode  string
	ClassCode string
	Prefix    string
}

// String renders the key for logs and cache keys
func (k SequenceKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.SchoolID, k.YearCode, k.ClassCode, k.Prefix)
}

// ReceiptReference is an issued receipt reference
type ReceiptReference struct {
	Value      string `json:"reference"`
	Ordinal    int    `json:"ordinal"`
	Sequential bool   `json:"sequential"`
}

// String returns the formatted reference
func (r ReceiptReference) String() string {
	return r.Value
}

var academicYearPattern = regexp.MustCompile(`^(\d{4})\s*[-/]\s*(\d{4})$`)

// YearCode concatenates the last three digits of both year boundaries:
// "2025-2026" gives "025026". Both boundaries are required.
func YearCode(academicYear string) (string, error) {
	m := academicYearPattern.FindStringSubmatch(strings.TrimSpace(academicYear))
	if m == nil {
		return "", ErrInvalidAcademicYear
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if end != start+1 {
		return "", ErrInvalidAcademicYear
	}
	return fmt.Sprintf("%03d%03d", start%1000, end%1000), nil
}

// ValidAcademicYear reports whether s can produce a year code
func ValidAcademicYear(s string) bool {
	_, err := YearCode(s)
	return err == nil
}

var maternellePattern = regexp.MustCompile(`^MATERNELLE\s*(\d+)$`)

// ClassCode normalizes a class name into a reference-safe code: diacritics
// and non-alphanumerics are dropped, "Maternelle N" becomes "MATN", and the
// result is capped at maxLen characters.
func ClassCode(className string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultClassCodeLength
	}
	name := strings.ToUpper(strings.TrimSpace(foldDiacritics(className)))
	if m := maternellePattern.FindStringSubmatch(name); m != nil {
		name = "MAT" + m[1]
	}

	var b strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if code == "" {
		return GeneralClassCode
	}
	if len(code) > maxLen {
		code = code[:maxLen]
	}
	return code
}

// TypeLetter returns the first letter of the kind, or 'A' when absent
func TypeLetter(kind string) string {
	k := strings.ToUpper(strings.TrimSpace(foldDiacritics(kind)))
	for _, r := range k {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			return string(r)
		}
	}
	return DefaultTypeLetter
}

// NewSequenceKey derives the counter key for a scope
func NewSequenceKey(schoolID uuid.UUID, scope ReceiptScope, classCodeLen int) (SequenceKey, error) {
	yearCode, err := YearCode(scope.AcademicYear)
	if err != nil {
		return SequenceKey{}, err
	}
	key := SequenceKey{
		SchoolID:  schoolID,
		YearCode:  yearCode,
		ClassCode: ClassCode(scope.ClassName, classCodeLen),
	}
	if scope.Kind.IsFeeAdjacent() {
		key.Prefix = TypeLetter(string(scope.Kind))
	}
	return key, nil
}

// FormatReference renders REC-{year}-{letter}{ordinal}-{class} for fee
// revenues and REC-{year}-{ordinal}-{class} for the rest
func FormatReference(key SequenceKey, ordinal int) ReceiptReference {
	return ReceiptReference{
		Value:      fmt.Sprintf("%s-%s-%s%0*d-%s", ReferencePrefix, key.YearCode, key.Prefix, ordinalWidth, ordinal, key.ClassCode),
		Ordinal:    ordinal,
		Sequential: true,
	}
}

// FallbackReference builds a time-based reference for when no sequence can
// be drawn. It is flagged non-sequential for later reconciliation.
func FallbackReference(key SequenceKey, now time.Time) ReceiptReference {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return ReceiptReference{
		Value: fmt.Sprintf("%s-%s-TMP%s-%s-%s", ReferencePrefix, key.YearCode,
			now.UTC().Format("20060102150405"), suffix, key.ClassCode),
		Sequential: false,
	}
}

var referencePattern = regexp.MustCompile(`^REC-(\d{6})-([A-Z]?)(\d{4,})-([A-Z0-9]+)$`)

// ParseReference extracts the key parts and ordinal of a sequential
// reference. Fallback references do not parse.
func ParseReference(ref string) (yearCode, prefix string, ordinal int, classCode string, ok bool) {
	m := referencePattern.FindStringSubmatch(ref)
	if m == nil {
		return "", "", 0, "", false
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, "", false
	}
	return m[1], m[2], n, m[4], true
}

// MaxOrdinal returns the highest ordinal among refs that belong to key
func MaxOrdinal(key SequenceKey, refs []string) int {
	max := 0
	for _, ref := range refs {
		year, prefix, n, class, ok := ParseReference(ref)
		if !ok || year != key.YearCode || prefix != key.Prefix || class != key.ClassCode {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
