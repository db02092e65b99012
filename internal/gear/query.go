package gear

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/gear-detector/backend/pkg/utils"
)

const (
	maxFieldLength = 255
	minYear        = 1900
	maxYear        = 2100
)

type Query struct {
	Artist string `json:"artist"`
	Song   string `json:"song"`
	Year   *int   `json:"year,omitempty"`
}

func (q Query) Validate() error {
	if utils.NormalizeText(q.Artist) == "" {
		return fmt.Errorf("%w: artist is required", ErrInvalidQuery)
	}
	if utils.NormalizeText(q.Song) == "" {
		return fmt.Errorf("%w: song is required", ErrInvalidQuery)
	}
	if utf8.RuneCountInString(q.Artist) > maxFieldLength || utf8.RuneCountInString(q.Song) > maxFieldLength {
		return fmt.Errorf("%w: artist and song must be at most %d characters", ErrInvalidQuery, maxFieldLength)
	}
	if q.Year != nil && (*q.Year < minYear || *q.Year > maxYear) {
		return fmt.Errorf("%w: year %d outside %d-%d", ErrInvalidQuery, *q.Year, minYear, maxYear)
	}
	return nil
}

// Identity is the normalized "artist:song:year" tuple; the year slot is empty when absent.
func (q Query) Identity() string {
	year := ""
	if q.Year != nil {
		year = strconv.Itoa(*q.Year)
	}
	return utils.NormalizeText(q.Artist) + ":" + utils.NormalizeText(q.Song) + ":" + year
}

func (q Query) String() string {
	if q.Year != nil {
		return fmt.Sprintf("%s - %s (%d)", q.Artist, q.Song, *q.Year)
	}
	return fmt.Sprintf("%s - %s", q.Artist, q.Song)
}

func IntPtr(v int) *int {
	return &v
}
