package persona

// Name and address pools for synthetic identities. The pools are French
// because the records this engine processes are French clinical documents;
// replacements must read naturally in narrative text.

var maleFirstNames = []string{
	"Jean", "Pierre", "Michel", "André", "Philippe", "Alain", "Bernard", "Jacques",
	"François", "Christian", "Daniel", "Patrick", "Nicolas", "Olivier", "Laurent",
	"Thierry", "Stéphane", "Éric", "David", "Julien", "Christophe", "Pascal",
	"Sébastien", "Marc", "Vincent", "Antoine", "Alexandre", "Maxime", "Thomas",
	"Lucas", "Hugo", "Louis", "Arthur", "Gabriel", "Raphaël", "Paul", "Jules",
}

var femaleFirstNames = []string{
	"Marie", "Nathalie", "Isabelle", "Sylvie", "Catherine", "Françoise", "Valérie",
	"Christine", "Monique", "Sophie", "Patricia", "Martine", "Nicole", "Sandrine",
	"Stéphanie", "Céline", "Julie", "Aurélie", "Caroline", "Laurence", "Émilie",
	"Claire", "Anne", "Camille", "Laura", "Sarah", "Manon", "Emma", "Léa",
	"Chloé", "Zoé", "Alice", "Charlotte", "Lucie", "Juliette", "Louise",
}

var lastNames = []string{
	"Martin", "Bernard", "Dubois", "Thomas", "Robert", "Richard", "Petit",
	"Durand", "Leroy", "Moreau", "Simon", "Laurent", "Lefebvre", "Michel",
	"Garcia", "David", "Bertrand", "Roux", "Vincent", "Fournier", "Morel",
	"Girard", "André", "Lefevre", "Mercier", "Dupont", "Lambert", "Bonnet",
	"François", "Martinez", "Legrand", "Garnier", "Faure", "Rousseau", "Blanc",
	"Guerin", "Muller", "Henry", "Roussel", "Nicolas", "Perrin", "Morin",
	"Mathieu", "Clement", "Gauthier", "Dumont", "Lopez", "Fontaine", "Chevalier",
	"Robin", "Masson", "Sanchez", "Gerard", "Nguyen", "Boyer", "Denis", "Lemaire",
}

var streetNames = []string{
	"rue de la République", "avenue Victor Hugo", "rue des Lilas",
	"boulevard Jean Jaurès", "rue du Moulin", "place de l'Église",
	"rue Pasteur", "avenue des Tilleuls", "rue des Écoles",
	"chemin des Vignes", "impasse des Rosiers", "rue Gambetta",
}

var localities = []struct {
	postalCode string
	city       string
}{
	{"69003", "Lyon"},
	{"75012", "Paris"},
	{"33000", "Bordeaux"},
	{"44000", "Nantes"},
	{"31000", "Toulouse"},
	{"59000", "Lille"},
	{"67000", "Strasbourg"},
	{"35000", "Rennes"},
	{"13005", "Marseille"},
	{"38000", "Grenoble"},
}

// MaleFirstNames exposes the male pool for gender-pool assertions in callers
// and tests.
func MaleFirstNames() []string { return maleFirstNames }

// FemaleFirstNames exposes the female pool.
func FemaleFirstNames() []string { return femaleFirstNames }

// LastNames exposes the surname pool.
func LastNames() []string { return lastNames }
