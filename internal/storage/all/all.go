// Package all подключает все бэкенды хранилища: конфиг выбирает один из них,
// но поддержка всех должна быть собрана в бинарник.
package all

import (
	_ "sitewatch-parser/internal/storage/mssql"
	_ "sitewatch-parser/internal/storage/postgres"
	_ "sitewatch-parser/internal/storage/sqlite"
)
