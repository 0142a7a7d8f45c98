package library

const (
	UpsertPageCount = `INSERT INTO comics (identity, hashkey, nb_pages, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (identity) DO UPDATE SET nb_pages = excluded.nb_pages, updated_at = excluded.updated_at;`
	UpsertCurrentPage = `INSERT INTO comics (identity, hashkey, current_page, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (identity) DO UPDATE SET current_page = excluded.current_page, updated_at = excluded.updated_at;`
	SelectComic  = `SELECT identity, hashkey, nb_pages, current_page, updated_at FROM comics WHERE identity = ?;`
	SelectComics = `SELECT identity, hashkey, nb_pages, current_page, updated_at FROM comics ORDER BY identity;`
	DeleteComic  = `DELETE FROM comics WHERE identity = ?;`
)
