package sandbox

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/jaswdr/faker"
)

var statuses = []string{"pending", "paid", "shipped", "delivered", "cancelled"}

// generator produces fake rows. counts holds the number of rows already
// written per table so references always point at existing ids.
type generator struct {
	fake   faker.Faker
	now    time.Time
	counts map[string]int
}

func newGenerator(seed int64) *generator {
	fake := faker.New()
	if seed != 0 {
		fake = faker.NewWithSeed(rand.NewSource(seed))
	}
	return &generator{
		fake:   fake,
		now:    time.Now().UTC().Truncate(time.Second),
		counts: make(map[string]int),
	}
}

// row returns the insert parameters for row n (1-based) of t
func (g *generator) row(t TableSpec, n int) ([]any, error) {
	params := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		v, err := g.value(c, n)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, c.Name, err)
		}
		params[i] = v
	}
	return params, nil
}

func (g *generator) value(c ColumnSpec, n int) (any, error) {
	// nullable columns are empty about a third of the time
	if c.Nullable && c.Kind != KindID && g.fake.IntBetween(1, 10) <= 3 {
		return nil, nil
	}

	switch c.Kind {
	case KindID:
		return n, nil
	case KindRef:
		parents := g.counts[c.Ref]
		if parents == 0 {
			if c.Nullable {
				return nil, nil
			}
			return nil, fmt.Errorf("no rows in referenced table %s", c.Ref)
		}
		return g.fake.IntBetween(1, parents), nil
	case KindName:
		return g.fake.Person().Name(), nil
	case KindEmail:
		return g.fake.Internet().Email(), nil
	case KindCity:
		return g.fake.Address().City(), nil
	case KindCountry:
		return g.fake.Address().Country(), nil
	case KindTitle:
		return g.fake.Lorem().Sentence(4), nil
	case KindText:
		return g.fake.Lorem().Paragraph(2), nil
	case KindPrice:
		return fmt.Sprintf("%.2f", g.fake.Float64(2, 1, 500)), nil
	case KindQuantity:
		return g.fake.IntBetween(1, 10), nil
	case KindBool:
		if g.fake.Boolean().Bool() {
			return 1, nil
		}
		return 0, nil
	case KindTime:
		return g.fake.Time().TimeBetween(g.now.AddDate(-1, 0, 0), g.now).Truncate(time.Second), nil
	case KindStatus:
		return g.fake.RandomStringElement(statuses), nil
	case KindJSON:
		doc := map[string]any{
			"color": g.fake.Color().Hex(),
			"tags":  []string{g.fake.Lorem().Word(), g.fake.Lorem().Word()},
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	return nil, fmt.Errorf("unknown column kind %d", c.Kind)
}
