package demo

import (
	"context"
	"fmt"
	"os"

	"github.com/canonical/go-dqlite/app"

	"github.com/sqlkit/sqlkit"
)

type Person struct {
	Name     string `db:"name"`
	Height   int    `db:"height_cm"`
	HomeTown string `db:"home_town"`
}

type Place struct {
	Name       string `db:"town_name"`
	Population int    `db:"population"`
}

// demo runs the walkthrough against a single-node dqlite cluster instead
// of a plain sqlite file. dqlite speaks the sqlite dialect, so the query
// side is unchanged.
func demo() error {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "sqlkit-demo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	node, err := app.New(dir, app.WithAddress("127.0.0.1:9001"))
	if err != nil {
		return err
	}
	defer node.Close()
	if err := node.Ready(ctx); err != nil {
		return err
	}

	db, err := node.Open(ctx, "demo")
	if err != nil {
		return err
	}

	q := sqlkit.New(sqlkit.Options{DB: db, Driver: "sqlite3", LogCategory: "demo"})
	defer q.Close()

	q.SetSQL(`
	CREATE TABLE people (
		id integer PRIMARY KEY,
		name text,
		height_cm integer,
		home_town text
	)`)
	if _, err := q.Exec(ctx); err != nil {
		return err
	}
	q.SetSQL(`
	CREATE TABLE location (
		id integer PRIMARY KEY,
		town_name text,
		population integer
	)`)
	if _, err := q.Exec(ctx); err != nil {
		return err
	}

	var people = []Person{{"Jim", 150, "Kabul"}, {"Saba", 162, "Berlin"}, {"Dave", 169, "Brasília"}, {"Sophie", 174, "Berlin"}, {"Kiri", 168, "Cape Town"}}
	var places = []Place{{"Kabul", 13000000}, {"Berlin", 3677472}, {"Brasília", 3039444}, {"Cape Town", 4710000}}

	// Load both tables inside one transaction.
	if _, err := q.Begin(ctx, nil); err != nil {
		return err
	}
	for _, p := range people {
		q.Clauses().
			InsertInto("people", "name", "height_cm", "home_town").
			Values("@name", "@height", "@town")
		q.Params().Add("name", p.Name).Add("height", p.Height).Add("town", p.HomeTown)
		if _, err := q.Exec(ctx); err != nil {
			return err
		}
	}
	for _, l := range places {
		q.Clauses().
			InsertInto("location", "town_name", "population").
			Values("@name", "@population")
		q.Params().Add("name", l.Name).Add("population", l.Population)
		if _, err := q.Exec(ctx); err != nil {
			return err
		}
	}
	if err := q.Commit(); err != nil {
		return err
	}

	// Find people taller than Saba.
	q.Clauses().
		Select("name", "height_cm", "home_town").
		From("people").
		Where("height_cm > @height").
		OrderBy("height_cm").
		Bind("height", 162)
	taller, err := sqlkit.All[Person](ctx, q)
	if err != nil {
		return err
	}
	for _, p := range taller {
		fmt.Printf("%s is taller than Saba.\n", p.Name)
	}

	// Join each of them to their home town. The row carries the columns of
	// both tables; the second entity starts at the town_name column.
	type homed struct {
		person Person
		place  Place
	}
	q.Clauses().
		Select("p.name", "p.height_cm", "p.home_town", "l.town_name", "l.population").
		From("people AS p").
		Join("location AS l ON p.home_town = l.town_name").
		Where("p.height_cm > @height").
		Bind("height", 162)
	pairs, err := sqlkit.All2(ctx, q, func(p Person, l Place) homed {
		return homed{p, l}
	}, sqlkit.SplitOn("town_name"))
	if err != nil {
		return err
	}
	for _, h := range pairs {
		fmt.Printf("%s lives in a town of %d people.\n", h.person.Name, h.place.Population)
	}
	return nil
}

func main() {
	if err := demo(); err != nil {
		panic(err)
	}
}
