package restive

import (
	"net/url"
	"strconv"
)

// SelectorFromQuery builds a selector from request query parameters.
// Values that parse fully as numbers are stored as float64 so that
// numeric fields match records decoded from JSON; everything else is
// kept as a string.
func SelectorFromQuery(q url.Values) Selector {
	sel := Selector{}
	for key := range q {
		sel[key] = coerceQueryValue(q.Get(key))
	}

	return sel
}

func coerceQueryValue(val string) interface{} {
	if val == "" {
		return val
	}

	if num, err := strconv.ParseFloat(val, 64); err == nil {
		return num
	}

	return val
}

// entitySelector builds the selector for single-entity operations. The
// identity field always comes from the URL parameter, overriding any
// same-named query parameter.
func entitySelector(rc *RequestContext, idField string) Selector {
	sel := SelectorFromQuery(rc.QueryParams)
	sel[idField] = rc.URLParams["id"]

	return sel
}
