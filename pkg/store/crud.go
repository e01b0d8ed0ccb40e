package store

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
)

// InsertLibrary inserts a new library row.
func (s *Store) InsertLibrary(ctx context.Context, l Library) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO libraries (id, name, created_at, _updated_at) VALUES ($1, $2, $3, $4)`,
		l.ID, l.Name, l.CreatedAt, l.UpdatedAt)
	return err
}

// InsertStorageProfile inserts a new storage profile row.
func (s *Store) InsertStorageProfile(ctx context.Context, p StorageProfile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO storage_profiles (id, name, location, location_path, encrypted, is_default,
		 cloud_bucket, cloud_region, cloud_endpoint, cloud_access_key, cloud_secret_key, _updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Name, p.Location, p.LocationPath, p.Encrypted, p.IsDefault,
		p.CloudBucket, p.CloudRegion, p.CloudEndpoint, p.CloudAccessKey, p.CloudSecretKey, p.UpdatedAt)
	return err
}

// GetDefaultStorageProfile returns the library's sole default storage profile.
func (s *Store) GetDefaultStorageProfile(ctx context.Context) (StorageProfile, error) {
	var p StorageProfile
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, location, location_path, encrypted, is_default,
		 cloud_bucket, cloud_region, cloud_endpoint, cloud_access_key, cloud_secret_key, _updated_at
		 FROM storage_profiles WHERE is_default LIMIT 1`)
	err := row.Scan(&p.ID, &p.Name, &p.Location, &p.LocationPath, &p.Encrypted, &p.IsDefault,
		&p.CloudBucket, &p.CloudRegion, &p.CloudEndpoint, &p.CloudAccessKey, &p.CloudSecretKey, &p.UpdatedAt)
	return p, err
}

// InsertArtist inserts a new artist row.
func (s *Store) InsertArtist(ctx context.Context, a Artist) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO artists (id, name, sort_name, mbid, discogs_id, created_at, _updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Name, a.SortName, a.Mbid, a.DiscogsID, a.CreatedAt, a.UpdatedAt)
	return err
}

// GetArtist returns an artist by id.
func (s *Store) GetArtist(ctx context.Context, id string) (Artist, error) {
	var a Artist
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, sort_name, mbid, discogs_id, created_at, _updated_at FROM artists WHERE id = $1`, id)
	err := row.Scan(&a.ID, &a.Name, &a.SortName, &a.Mbid, &a.DiscogsID, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// InsertAlbum inserts a new album row.
func (s *Store) InsertAlbum(ctx context.Context, a Album) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO albums (id, title, year, cover_image_id, cover_art_url, is_compilation, is_private,
		 musicbrainz_release, discogs_release, created_at, _updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.Title, a.Year, a.CoverImageID, a.CoverArtURL, a.IsCompilation, a.IsPrivate,
		a.MusicbrainzRelease, a.DiscogsRelease, a.CreatedAt, a.UpdatedAt)
	return err
}

// GetAlbum returns an album by id.
func (s *Store) GetAlbum(ctx context.Context, id string) (Album, error) {
	var a Album
	row := s.pool.QueryRow(ctx,
		`SELECT id, title, year, cover_image_id, cover_art_url, is_compilation, is_private,
		 musicbrainz_release, discogs_release, created_at, _updated_at FROM albums WHERE id = $1`, id)
	err := row.Scan(&a.ID, &a.Title, &a.Year, &a.CoverImageID, &a.CoverArtURL, &a.IsCompilation, &a.IsPrivate,
		&a.MusicbrainzRelease, &a.DiscogsRelease, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// DeleteAlbum deletes an album; cascades to releases, tracks, files, images,
// and album_artists rows per the schema's ON DELETE CASCADE edges.
func (s *Store) DeleteAlbum(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM albums WHERE id = $1`, id)
	return err
}

// InsertAlbumArtist inserts an album/artist credit row.
func (s *Store) InsertAlbumArtist(ctx context.Context, aa AlbumArtist) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO album_artists (album_id, artist_id, position, _updated_at) VALUES ($1, $2, $3, $4)`,
		aa.AlbumID, aa.ArtistID, aa.Position, aa.UpdatedAt)
	return err
}

// InsertRelease inserts a new release row.
func (s *Store) InsertRelease(ctx context.Context, r Release) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO releases (id, album_id, release_name, year, format, label, catalog_number,
		 country, barcode, import_status, discogs_release_id, bandcamp_release_id,
		 managed_locally, unmanaged_path, created_at, _updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.ID, r.AlbumID, r.ReleaseName, r.Year, r.Format, r.Label, r.CatalogNumber,
		r.Country, r.Barcode, r.ImportStatus, r.DiscogsReleaseID, r.BandcampReleaseID,
		r.ManagedLocally, r.UnmanagedPath, r.CreatedAt, r.UpdatedAt)
	return err
}

// GetRelease returns a release by id.
func (s *Store) GetRelease(ctx context.Context, id string) (Release, error) {
	var r Release
	row := s.pool.QueryRow(ctx,
		`SELECT id, album_id, release_name, year, format, label, catalog_number, country, barcode,
		 import_status, discogs_release_id, bandcamp_release_id, managed_locally, unmanaged_path,
		 created_at, _updated_at FROM releases WHERE id = $1`, id)
	err := row.Scan(&r.ID, &r.AlbumID, &r.ReleaseName, &r.Year, &r.Format, &r.Label, &r.CatalogNumber,
		&r.Country, &r.Barcode, &r.ImportStatus, &r.DiscogsReleaseID, &r.BandcampReleaseID,
		&r.ManagedLocally, &r.UnmanagedPath, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// ListReleasesByAlbum returns an album's releases ordered by creation time, oldest first.
func (s *Store) ListReleasesByAlbum(ctx context.Context, albumID string) ([]Release, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, album_id, release_name, year, format, label, catalog_number, country, barcode,
		 import_status, discogs_release_id, bandcamp_release_id, managed_locally, unmanaged_path,
		 created_at, _updated_at FROM releases WHERE album_id = $1 ORDER BY created_at ASC`, albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReleases(rows)
}

func scanReleases(rows pgx.Rows) ([]Release, error) {
	out := make([]Release, 0)
	for rows.Next() {
		var r Release
		if err := rows.Scan(&r.ID, &r.AlbumID, &r.ReleaseName, &r.Year, &r.Format, &r.Label, &r.CatalogNumber,
			&r.Country, &r.Barcode, &r.ImportStatus, &r.DiscogsReleaseID, &r.BandcampReleaseID,
			&r.ManagedLocally, &r.UnmanagedPath, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertTrack inserts a new track row.
func (s *Store) InsertTrack(ctx context.Context, t Track) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tracks (id, release_id, title, disc_number, track_number, duration_ms, isrc,
		 import_status, created_at, _updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.ReleaseID, t.Title, t.DiscNumber, t.TrackNumber, t.DurationMs, t.Isrc,
		t.ImportStatus, t.CreatedAt, t.UpdatedAt)
	return err
}

// ListTracksByRelease returns a release's tracks ordered by disc/track number.
func (s *Store) ListTracksByRelease(ctx context.Context, releaseID string) ([]Track, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, release_id, title, disc_number, track_number, duration_ms, isrc, import_status,
		 created_at, _updated_at FROM tracks WHERE release_id = $1 ORDER BY disc_number, track_number`, releaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Track, 0)
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.ID, &t.ReleaseID, &t.Title, &t.DiscNumber, &t.TrackNumber, &t.DurationMs,
			&t.Isrc, &t.ImportStatus, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertFile inserts a new file row. Called only after the blob write it
// describes has fully succeeded (see pkg/filestore).
func (s *Store) InsertFile(ctx context.Context, f File) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO files (id, release_id, original_filename, file_size, content_type,
		 encryption_nonce, encryption_scheme, source_path, sha256, created_at, _updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		f.ID, f.ReleaseID, f.OriginalFilename, f.FileSize, f.ContentType,
		f.EncryptionNonce, f.EncryptionScheme, f.SourcePath, f.SHA256, f.CreatedAt, f.UpdatedAt)
	return err
}

// GetFile returns a file by id.
func (s *Store) GetFile(ctx context.Context, id string) (File, error) {
	var f File
	row := s.pool.QueryRow(ctx,
		`SELECT id, release_id, original_filename, file_size, content_type, encryption_nonce,
		 encryption_scheme, source_path, sha256, created_at, _updated_at FROM files WHERE id = $1`, id)
	err := row.Scan(&f.ID, &f.ReleaseID, &f.OriginalFilename, &f.FileSize, &f.ContentType,
		&f.EncryptionNonce, &f.EncryptionScheme, &f.SourcePath, &f.SHA256, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

// ListFilesByRelease returns all files belonging to a release.
func (s *Store) ListFilesByRelease(ctx context.Context, releaseID string) ([]File, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, release_id, original_filename, file_size, content_type, encryption_nonce,
		 encryption_scheme, source_path, sha256, created_at, _updated_at FROM files WHERE release_id = $1`, releaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]File, 0)
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.ReleaseID, &f.OriginalFilename, &f.FileSize, &f.ContentType,
			&f.EncryptionNonce, &f.EncryptionScheme, &f.SourcePath, &f.SHA256, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// InsertImage inserts a new image row.
func (s *Store) InsertImage(ctx context.Context, img Image) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO images (id, release_id, filename, is_cover, source, created_at, _updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		img.ID, img.ReleaseID, img.Filename, img.IsCover, img.Source, img.CreatedAt, img.UpdatedAt)
	return err
}

// InsertReleaseStorage assigns a release to a storage profile.
func (s *Store) InsertReleaseStorage(ctx context.Context, rs ReleaseStorage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO release_storage (release_id, storage_profile_id, _updated_at) VALUES ($1, $2, $3)`,
		rs.ReleaseID, rs.StorageProfileID, rs.UpdatedAt)
	return err
}

// InsertImportJob inserts a new import job row.
func (s *Store) InsertImportJob(ctx context.Context, j ImportJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_jobs (id, album_title, artist_name, status, release_id, current_step,
		 progress_percent, created_at, _updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		j.ID, j.AlbumTitle, j.ArtistName, j.Status, j.ReleaseID, j.CurrentStep,
		j.ProgressPercent, j.CreatedAt, j.UpdatedAt)
	return err
}

// UpdateImportJobProgress advances an import job's status/step/progress.
func (s *Store) UpdateImportJobProgress(ctx context.Context, id, status string, currentStep *string, progressPercent *int, updatedAt string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE import_jobs SET status = $2, current_step = $3, progress_percent = $4, _updated_at = $5 WHERE id = $1`,
		id, status, currentStep, progressPercent, updatedAt)
	return err
}

// GetSyncCursor returns a peer device's last-applied sequence number,
// defaulting to 0 if no cursor row exists yet. sync_cursors is process-local
// orchestrator state: it is never captured into an outgoing changeset.
func (s *Store) GetSyncCursor(ctx context.Context, deviceID string) (uint64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `SELECT last_applied_seq FROM sync_cursors WHERE device_id = $1`, deviceID).Scan(&seq)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(seq), nil
}

// SetSyncCursor persists a peer device's last-applied sequence number.
func (s *Store) SetSyncCursor(ctx context.Context, deviceID string, seq uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_cursors (device_id, last_applied_seq) VALUES ($1, $2)
		 ON CONFLICT (device_id) DO UPDATE SET last_applied_seq = EXCLUDED.last_applied_seq`,
		deviceID, int64(seq))
	return err
}

// GetLocalSeq returns this device's own last-published sequence number.
func (s *Store) GetLocalSeq(ctx context.Context, deviceID string) (uint64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `SELECT local_seq FROM local_sync_state WHERE device_id = $1`, deviceID).Scan(&seq)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(seq), nil
}

// SetLocalSeq persists this device's own last-published sequence number.
func (s *Store) SetLocalSeq(ctx context.Context, deviceID string, seq uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO local_sync_state (device_id, local_seq) VALUES ($1, $2)
		 ON CONFLICT (device_id) DO UPDATE SET local_seq = EXCLUDED.local_seq`,
		deviceID, int64(seq))
	return err
}

var _ = sql.ErrNoRows // nullable columns above scan into pointer fields, not sql.Null* types
