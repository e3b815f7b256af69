package example

import (
	"context"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sqlkit/sqlkit"
)

type Person struct {
	ID   int    `db:"id"`
	Name string `db:"name"`
	Team string `db:"team"`
}

func example() error {
	ctx := context.Background()

	q := sqlkit.New(sqlkit.Options{
		Driver:           "sqlite3",
		ConnectionString: ":memory:",
		LogCategory:      "example",
	})
	defer q.Close()

	q.SetSQL(`
	CREATE TABLE person (
		id integer PRIMARY KEY,
		name text,
		team text
	)`)
	if _, err := q.Exec(ctx); err != nil {
		return err
	}

	var people = []Person{
		{1, "Alastair", "engineering"},
		{2, "Ed", "engineering"},
		{3, "Pedro", "management"},
		{4, "Serdar", "presentation engineering"},
		{5, "Joe", "marketing"},
	}

	// Insert the people one statement at a time; the query object clears
	// itself between calls.
	for _, p := range people {
		q.Clauses().
			InsertInto("person", "id", "name", "team").
			Values("@id", "@name", "@team")
		q.Params().Add("id", p.ID).Add("name", p.Name).Add("team", p.Team)
		if _, err := q.Exec(ctx); err != nil {
			return err
		}
	}

	// Count the engineers.
	q.Clauses().
		Select("count(*)").
		From("person").
		Where("team = @team").
		Bind("team", "engineering")
	n, err := sqlkit.Scalar[int](ctx, q)
	if err != nil {
		return err
	}
	fmt.Printf("%d people are in engineering.\n", n)

	// Fetch them as structs.
	q.Clauses().
		Select("id", "name", "team").
		From("person").
		Where("team = @team").
		OrderBy("id").
		Bind("team", "engineering")
	engineers, err := sqlkit.All[Person](ctx, q)
	if err != nil {
		return err
	}
	for _, p := range engineers {
		fmt.Printf("%s is an engineer.\n", p.Name)
	}

	// Move Joe inside a transaction.
	if _, err := q.Begin(ctx, nil); err != nil {
		return err
	}
	q.SetSQL("UPDATE person SET team = @team WHERE name = @name")
	q.Params().Add("team", "engineering").Add("name", "Joe")
	if _, err := q.Exec(ctx); err != nil {
		// A failed mutation has already rolled the transaction back.
		return err
	}
	if err := q.Commit(); err != nil {
		return err
	}

	// Does anyone do marketing any more?
	q.Clauses().From("person").Where("team = @team").Bind("team", "marketing")
	anyone, err := q.Exists(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Marketing still staffed: %v\n", anyone)
	return nil
}
