package database

// ReplacePopulation reloads the population table from a fresh dataset in a
// single transaction. The source is a snapshot, so a reload replaces
// everything rather than merging.
func (db *DB) ReplacePopulation(entries []PopulationRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM population"); err != nil {
		tx.Rollback()
		return err
	}

	for _, e := range entries {
		isRegion := 0
		if e.IsRegion {
			isRegion = 1
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO population (geography, region, population, is_region)
			VALUES (?, ?, ?, ?)`,
			e.Geography, e.Region, e.Population, isRegion,
		); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// GetPopulation returns all population rows, regions included, ordered by
// geography.
func (db *DB) GetPopulation() ([]PopulationRow, error) {
	rows, err := db.conn.Query(
		`SELECT geography, region, population, is_region, loaded_at
		FROM population ORDER BY geography`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []PopulationRow
	for rows.Next() {
		var e PopulationRow
		var region *string
		var isRegion int
		if err := rows.Scan(&e.Geography, &region, &e.Population, &isRegion, &e.LoadedAt); err != nil {
			return nil, err
		}
		if region != nil {
			e.Region = *region
		}
		e.IsRegion = isRegion != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
