package metadata

// MaxRating is the highest star rating.
const MaxRating = 5

var ratingToPercent = [MaxRating + 1]int{0, 1, 25, 50, 75, 99}

// PercentFromRating maps a 0-5 star rating to the RatingPercent value
// written alongside it. Out-of-range ratings map to 0.
func PercentFromRating(rating int) int {
	if rating < 0 || rating > MaxRating {
		return 0
	}
	return ratingToPercent[rating]
}

// RatingFromPercent quantizes a RatingPercent value to stars. Values outside
// 0-100 report ok=false.
func RatingFromPercent(percent int) (rating int, ok bool) {
	switch {
	case percent < 0 || percent > 100:
		return 0, false
	case percent == 0:
		return 0, true
	case percent < 25:
		return 1, true
	case percent < 50:
		return 2, true
	case percent < 75:
		return 3, true
	case percent < 99:
		return 4, true
	default:
		return 5, true
	}
}

func validRating(r *int) bool {
	return r != nil && *r >= 0 && *r <= MaxRating
}

// resolveRating applies the source priority: EXIF Rating, XMP Rating, EXIF
// RatingPercent, XMP RatingPercent.
func resolveRating(e *Embedded) *int {
	for _, r := range []*int{e.ExifRating, e.XMPRating} {
		if validRating(r) {
			v := *r
			return &v
		}
	}
	for _, p := range []*int{e.ExifPercent, e.XMPPercent} {
		if p == nil {
			continue
		}
		if v, ok := RatingFromPercent(*p); ok {
			return &v
		}
	}
	return nil
}
