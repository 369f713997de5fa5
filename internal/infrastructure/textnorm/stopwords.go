package textnorm

// Turkish stop words common in medical prose. Stored diacritics-folded;
// lookups fold the candidate token the same way.
func stopwordSet() map[string]struct{} {
	words := []string{
		"ve", "veya", "ile", "bir", "bu", "şu", "o", "için", "da", "de",
		"mi", "mu", "mü", "ki", "ne", "kadar", "gibi", "daha", "çok", "az",
		"ama", "ancak", "her", "en", "ise", "olarak", "olan", "sonra",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[foldDiacritics(w)] = struct{}{}
	}
	return m
}
