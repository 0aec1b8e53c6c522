package usecases

import (
	"context"
	"strings"

	"github.com/samirrijal/miniguide/internal/core/domain"
)

// Gazetteer is a static in-process place table. It backs the local fallback
// source and the popular suggestion list, and never fails.
type Gazetteer struct {
	entries []domain.PlaceCandidate
	popular []domain.PlaceCandidate
}

// NewGazetteer returns the built-in gazetteer of Indian cities and destinations.
func NewGazetteer() *Gazetteer {
	entries := make([]domain.PlaceCandidate, 0, len(builtinPlaces))
	for _, p := range builtinPlaces {
		entries = append(entries, domain.PlaceCandidate{
			Name:         p.name,
			Region:       p.region,
			DisplayLabel: p.name + ", " + p.region,
			Coordinate:   domain.GeoPoint{Lat: p.lat, Lng: p.lng},
			Type:         "city",
			Source:       domain.SourceLocalFallback,
		})
	}
	return NewGazetteerFrom(entries, builtinPopular)
}

// NewGazetteerFrom builds a gazetteer over entries. popular names the entries,
// in display order, that make up the popular list; unknown names are skipped.
func NewGazetteerFrom(entries []domain.PlaceCandidate, popular []string) *Gazetteer {
	g := &Gazetteer{entries: make([]domain.PlaceCandidate, len(entries))}
	for i, e := range entries {
		g.entries[i] = e.WithSource(domain.SourceLocalFallback)
	}
	for _, name := range popular {
		for _, e := range g.entries {
			if e.Name == name {
				g.popular = append(g.popular, e.WithSource(domain.SourcePopular))
				break
			}
		}
	}
	return g
}

// Search implements ports.GeoSource with a case-insensitive substring match on
// the place name. Prefix matches come first; ties keep table order.
// A limit of zero or less returns every match.
func (g *Gazetteer) Search(_ context.Context, text string, limit int) ([]domain.PlaceCandidate, error) {
	matches := g.match(text)
	out := make([]domain.PlaceCandidate, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.candidate)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Popular returns a copy of the curated popular list.
func (g *Gazetteer) Popular() []domain.PlaceCandidate {
	out := make([]domain.PlaceCandidate, len(g.popular))
	copy(out, g.popular)
	return out
}

// Entries returns a copy of every entry, for seeding.
func (g *Gazetteer) Entries() []domain.PlaceCandidate {
	out := make([]domain.PlaceCandidate, len(g.entries))
	copy(out, g.entries)
	return out
}

type localMatch struct {
	candidate domain.PlaceCandidate
	prefix    bool
}

func (g *Gazetteer) match(text string) []localMatch {
	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return nil
	}

	var prefix, inner []localMatch
	for _, e := range g.entries {
		name := strings.ToLower(e.Name)
		switch {
		case strings.HasPrefix(name, q):
			prefix = append(prefix, localMatch{candidate: e, prefix: true})
		case strings.Contains(name, q):
			inner = append(inner, localMatch{candidate: e})
		}
	}
	return append(prefix, inner...)
}

var builtinPopular = []string{
	"Goa", "Jaipur", "Manali", "Kochi", "Udaipur", "Rishikesh", "Varanasi", "Darjeeling",
}

type gazetteerRow struct {
	name, region string
	lat, lng     float64
}

var builtinPlaces = []gazetteerRow{
	{"Delhi", "Delhi", 28.6139, 77.2090},
	{"New Delhi", "Delhi", 28.6139, 77.2090},
	{"Mumbai", "Maharashtra", 19.0760, 72.8777},
	{"Bangalore", "Karnataka", 12.9716, 77.5946},
	{"Bengaluru", "Karnataka", 12.9716, 77.5946},
	{"Hyderabad", "Telangana", 17.3850, 78.4867},
	{"Chennai", "Tamil Nadu", 13.0827, 80.2707},
	{"Kolkata", "West Bengal", 22.5726, 88.3639},
	{"Pune", "Maharashtra", 18.5204, 73.8567},
	{"Jaipur", "Rajasthan", 26.9124, 75.7873},
	{"Ahmedabad", "Gujarat", 23.0225, 72.5714},
	{"Lucknow", "Uttar Pradesh", 26.8467, 80.9462},
	{"Agra", "Uttar Pradesh", 27.1767, 78.0081},
	{"Varanasi", "Uttar Pradesh", 25.3176, 82.9739},
	{"Goa", "Goa", 15.2993, 74.1240},
	{"Panaji", "Goa", 15.4909, 73.8278},
	{"Udaipur", "Rajasthan", 24.5854, 73.7125},
	{"Jodhpur", "Rajasthan", 26.2389, 73.0243},
	{"Jaisalmer", "Rajasthan", 26.9157, 70.9083},
	{"Amritsar", "Punjab", 31.6340, 74.8723},
	{"Shimla", "Himachal Pradesh", 31.1048, 77.1734},
	{"Manali", "Himachal Pradesh", 32.2396, 77.1887},
	{"Dharamshala", "Himachal Pradesh", 32.2190, 76.3234},
	{"Rishikesh", "Uttarakhand", 30.0869, 78.2676},
	{"Haridwar", "Uttarakhand", 29.9457, 78.1642},
	{"Kochi", "Kerala", 9.9312, 76.2673},
	{"Thiruvananthapuram", "Kerala", 8.5241, 76.9366},
	{"Munnar", "Kerala", 10.0889, 77.0595},
	{"Alleppey", "Kerala", 9.4981, 76.3388},
	{"Alappuzha", "Kerala", 9.4981, 76.3388},
	{"Mysore", "Karnataka", 12.2958, 76.6394},
	{"Mysuru", "Karnataka", 12.2958, 76.6394},
	{"Hampi", "Karnataka", 15.3350, 76.4600},
	{"Gokarna", "Karnataka", 14.5479, 74.3188},
	{"Darjeeling", "West Bengal", 27.0360, 88.2627},
	{"Gangtok", "Sikkim", 27.3389, 88.6065},
	{"Ooty", "Tamil Nadu", 11.4102, 76.6950},
	{"Kodaikanal", "Tamil Nadu", 10.2381, 77.4892},
	{"Madurai", "Tamil Nadu", 9.9252, 78.1198},
	{"Pondicherry", "Puducherry", 11.9416, 79.8083},
	{"Puducherry", "Puducherry", 11.9416, 79.8083},
	{"Srinagar", "Jammu & Kashmir", 34.0837, 74.7973},
	{"Leh", "Ladakh", 34.1526, 77.5771},
	{"Ladakh", "Ladakh", 34.1526, 77.5771},
	{"Coimbatore", "Tamil Nadu", 11.0168, 76.9558},
	{"Tirupati", "Andhra Pradesh", 13.6288, 79.4192},
	{"Visakhapatnam", "Andhra Pradesh", 17.6868, 83.2185},
	{"Vizag", "Andhra Pradesh", 17.6868, 83.2185},
	{"Bhopal", "Madhya Pradesh", 23.2599, 77.4126},
	{"Khajuraho", "Madhya Pradesh", 24.8318, 79.9199},
	{"Indore", "Madhya Pradesh", 22.7196, 75.8577},
	{"Ujjain", "Madhya Pradesh", 23.1765, 75.7885},
	{"Chandigarh", "Chandigarh", 30.7333, 76.7794},
	{"Patna", "Bihar", 25.6093, 85.1376},
	{"Bodh Gaya", "Bihar", 24.6961, 84.9869},
	{"Ranchi", "Jharkhand", 23.3441, 85.3096},
	{"Nagpur", "Maharashtra", 21.1458, 79.0882},
	{"Aurangabad", "Maharashtra", 19.8762, 75.3433},
	{"Ajanta", "Maharashtra", 20.5519, 75.7033},
	{"Ellora", "Maharashtra", 20.0258, 75.1780},
	{"Nashik", "Maharashtra", 20.0063, 73.7898},
	{"Lonavala", "Maharashtra", 18.7481, 73.4072},
	{"Mahabaleshwar", "Maharashtra", 17.9237, 73.6580},
	{"Pushkar", "Rajasthan", 26.4897, 74.5511},
	{"Mount Abu", "Rajasthan", 24.5926, 72.7156},
	{"Bikaner", "Rajasthan", 28.0229, 73.3119},
	{"Nainital", "Uttarakhand", 29.3919, 79.4542},
	{"Mussoorie", "Uttarakhand", 30.4598, 78.0644},
	{"Dehradun", "Uttarakhand", 30.3165, 78.0322},
	{"Almora", "Uttarakhand", 29.5971, 79.6591},
	{"Jim Corbett", "Uttarakhand", 29.5300, 78.7747},
	{"Ranthambore", "Rajasthan", 26.0173, 76.5026},
	{"Mathura", "Uttar Pradesh", 27.4924, 77.6737},
	{"Vrindavan", "Uttar Pradesh", 27.5799, 77.6980},
	{"Allahabad", "Uttar Pradesh", 25.4358, 81.8463},
	{"Prayagraj", "Uttar Pradesh", 25.4358, 81.8463},
	{"Dwarka", "Gujarat", 22.2442, 68.9685},
	{"Somnath", "Gujarat", 20.8880, 70.4014},
	{"Kutch", "Gujarat", 23.7337, 69.8597},
	{"Rann of Kutch", "Gujarat", 23.7337, 69.8597},
	{"Shirdi", "Maharashtra", 19.7672, 74.4774},
	{"Rameshwaram", "Tamil Nadu", 9.2881, 79.3174},
	{"Kanyakumari", "Tamil Nadu", 8.0883, 77.5385},
	{"Thanjavur", "Tamil Nadu", 10.7870, 79.1378},
	{"Mamallapuram", "Tamil Nadu", 12.6269, 80.1927},
	{"Kovalam", "Kerala", 8.3988, 76.9820},
	{"Wayanad", "Kerala", 11.6854, 76.1320},
	{"Varkala", "Kerala", 8.7379, 76.7163},
	{"Shillong", "Meghalaya", 25.5788, 91.8933},
	{"Cherrapunji", "Meghalaya", 25.2843, 91.7159},
	{"Tawang", "Arunachal Pradesh", 27.5860, 91.8691},
	{"Kaziranga", "Assam", 26.5775, 93.1711},
	{"Guwahati", "Assam", 26.1445, 91.7362},
	{"Imphal", "Manipur", 24.8170, 93.9368},
	{"Aizawl", "Mizoram", 23.7271, 92.7176},
	{"Kohima", "Nagaland", 25.6751, 94.1086},
	{"Agartala", "Tripura", 23.8315, 91.2868},
	{"Port Blair", "Andaman & Nicobar", 11.6234, 92.7265},
	{"Havelock Island", "Andaman & Nicobar", 12.0199, 93.0018},
	{"Coorg", "Karnataka", 12.3375, 75.8069},
	{"Madikeri", "Karnataka", 12.4244, 75.7382},
	{"Udupi", "Karnataka", 13.3409, 74.7421},
	{"Mangalore", "Karnataka", 12.9141, 74.8560},
	{"Puri", "Odisha", 19.8135, 85.8312},
	{"Bhubaneswar", "Odisha", 20.2961, 85.8245},
	{"Konark", "Odisha", 19.8876, 86.0945},
	{"Surat", "Gujarat", 21.1702, 72.8311},
	{"Vadodara", "Gujarat", 22.3072, 73.1812},
	{"Rajkot", "Gujarat", 22.3039, 70.8022},
	{"Jabalpur", "Madhya Pradesh", 23.1815, 79.9864},
	{"Gwalior", "Madhya Pradesh", 26.2183, 78.1828},
	{"Orchha", "Madhya Pradesh", 25.3519, 78.6408},
	{"Mandu", "Madhya Pradesh", 22.3356, 75.3939},
	{"Sanchi", "Madhya Pradesh", 23.4793, 77.7397},
	{"Amravati", "Maharashtra", 20.9374, 77.7796},
	{"Kolhapur", "Maharashtra", 16.7050, 74.2433},
	{"Alibaug", "Maharashtra", 18.6414, 72.8722},
	{"Vijaywada", "Andhra Pradesh", 16.5062, 80.6480},
	{"Tiruchirappalli", "Tamil Nadu", 10.7905, 78.7047},
	{"Trichy", "Tamil Nadu", 10.7905, 78.7047},
}
