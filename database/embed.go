// Package database embed dosyası: migration SQL dosyalarını binary'ye gömer.
package database

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations, migrations/ alt dizinini kök olarak gören fs.FS döner.
// database.New'e doğrudan verilebilir.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		// Sadece embed pattern'i yanlışsa olur: derleme zamanı hatası sayılır.
		panic(err)
	}
	return sub
}
