package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// Sanity check for a dogfooding run: counts what a loom-d session wrote
// to its SQLite oplog sink.
func main() {
	path := "deploy/dogfood/loom.db"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	var total int
	if err := db.QueryRow("SELECT count(*) FROM oplog").Scan(&total); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Total entries: %d\n", total)

	rows, err := db.Query("SELECT level, count(*) FROM oplog GROUP BY level ORDER BY count(*) DESC")
	if err != nil {
		log.Fatal(err)
	}
	defer rows.Close()

	fmt.Println("\nBy level:")
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("  %-6s %d\n", level, n)
	}
	if err := rows.Err(); err != nil {
		log.Fatal(err)
	}

	opRows, err := db.Query("SELECT op, count(*) FROM oplog GROUP BY op ORDER BY count(*) DESC LIMIT 15")
	if err != nil {
		log.Fatal(err)
	}
	defer opRows.Close()

	fmt.Println("\nTop operations:")
	for opRows.Next() {
		var op string
		var n int
		if err := opRows.Scan(&op, &n); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("  %-28s %d\n", op, n)
	}
	if err := opRows.Err(); err != nil {
		log.Fatal(err)
	}
}
