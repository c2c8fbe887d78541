package classifier

import "strconv"

// UnknownLabel is reported when the model's best output index has no label.
const UnknownLabel = "Unknown"

// commonWords are the ISL words and phrases that follow letters and digits in
// the default label set.
var commonWords = []string{
	"Hello",
	"Thank You",
	"How Are You",
	"Yes",
	"No",
	"Please",
	"Sorry",
	"I Love You",
	"Help",
	"Stop",
	"Eat",
	"Drink",
	"Friend",
	"Good",
	"Bad",
	"Morning",
	"Night",
	"Wait",
	"Again",
	"Finish",
}

// DefaultLabels returns the default label set: A-Z, 0-9, then common words.
// The order is significant, it matches the model's output units.
func DefaultLabels() []string {
	labels := make([]string, 0, 26+10+len(commonWords))
	for c := 'A'; c <= 'Z'; c++ {
		labels = append(labels, string(c))
	}
	for n := 0; n < 10; n++ {
		labels = append(labels, strconv.Itoa(n))
	}
	return append(labels, commonWords...)
}
