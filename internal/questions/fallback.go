package questions

// builtin is served when the repository has nothing for a category so that a
// match never starts without content.
var builtin = []Question{
	{ID: "builtin-1", Text: "What is the capital of France?", Options: []string{"Berlin", "Madrid", "Paris", "Rome"}, CorrectIndex: 2},
	{ID: "builtin-2", Text: "How many continents are there?", Options: []string{"5", "6", "7", "8"}, CorrectIndex: 2},
	{ID: "builtin-3", Text: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Mars", "Jupiter", "Mercury"}, CorrectIndex: 1},
	{ID: "builtin-4", Text: "What is 9 x 7?", Options: []string{"56", "63", "72", "81"}, CorrectIndex: 1},
	{ID: "builtin-5", Text: "Which gas do plants absorb from the air?", Options: []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Helium"}, CorrectIndex: 2},
	{ID: "builtin-6", Text: "What is the largest ocean on Earth?", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, CorrectIndex: 3},
	{ID: "builtin-7", Text: "Who wrote 'Romeo and Juliet'?", Options: []string{"Charles Dickens", "William Shakespeare", "Jane Austen", "Mark Twain"}, CorrectIndex: 1},
	{ID: "builtin-8", Text: "What is the boiling point of water at sea level in Celsius?", Options: []string{"90", "100", "110", "120"}, CorrectIndex: 1},
	{ID: "builtin-9", Text: "How many sides does a hexagon have?", Options: []string{"5", "6", "7", "8"}, CorrectIndex: 1},
	{ID: "builtin-10", Text: "What is the chemical symbol for gold?", Options: []string{"Ag", "Gd", "Au", "Go"}, CorrectIndex: 2},
}

// Fallback returns up to n questions from the built-in set.
func Fallback(n int) []Question {
	if n <= 0 || n > len(builtin) {
		n = len(builtin)
	}
	out := make([]Question, n)
	for i := range out {
		q := builtin[i]
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}

// Builtin exposes the full fallback set, e.g. for seeding a fresh database.
func Builtin() []Question {
	return Fallback(len(builtin))
}
