package main

import (
	"context"
	"log"

	"opensonar/internal/store"
	"opensonar/internal/surveylog"
)

func exportLog(ctx context.Context, rawPath, dbPath string) (err error) {
	lg, err := surveylog.ReadLog(rawPath)
	if err != nil {
		return err
	}
	s := store.NewSqliteStore(dbPath)
	defer func() {
		if cErr := s.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	id, err := s.Export(ctx, lg)
	if err != nil {
		return err
	}
	log.Printf("export done db=%s session=%d records=%d dropped=%d", dbPath, id, len(lg.Records), lg.Stats.Dropped)
	return nil
}
