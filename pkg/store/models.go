package store

// Library is the root of ownership for all other entities.
type Library struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"_updated_at"`
}

// StorageProfile describes where a release's files live and whether
// encryption is applied.
type StorageProfile struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Location        string  `json:"location"` // "local" | "cloud"
	LocationPath    *string `json:"location_path,omitempty"`
	Encrypted       bool    `json:"encrypted"`
	IsDefault       bool    `json:"is_default"`
	CloudBucket     *string `json:"cloud_bucket,omitempty"`
	CloudRegion     *string `json:"cloud_region,omitempty"`
	CloudEndpoint   *string `json:"cloud_endpoint,omitempty"`
	CloudAccessKey  *string `json:"cloud_access_key,omitempty"`
	CloudSecretKey  *string `json:"cloud_secret_key,omitempty"`
	UpdatedAt       string  `json:"_updated_at"`
}

// Artist is a credited performer or group.
type Artist struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	SortName  *string `json:"sort_name,omitempty"`
	Mbid      *string `json:"mbid,omitempty"`
	DiscogsID *string `json:"discogs_id,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"_updated_at"`
}

// Album groups one or more releases under a shared title.
type Album struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	Year               *int    `json:"year,omitempty"`
	CoverImageID       *string `json:"cover_image_id,omitempty"`
	CoverArtURL        *string `json:"cover_art_url,omitempty"`
	IsCompilation      bool    `json:"is_compilation"`
	IsPrivate          bool    `json:"is_private"`
	MusicbrainzRelease *string `json:"musicbrainz_release,omitempty"`
	DiscogsRelease     *string `json:"discogs_release,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"_updated_at"`
}

// AlbumArtist is the ordered join between an Album and its credited Artists.
type AlbumArtist struct {
	AlbumID   string `json:"album_id"`
	ArtistID  string `json:"artist_id"`
	Position  int    `json:"position"`
	UpdatedAt string `json:"_updated_at"`
}

// Release is one physical or digital edition of an Album.
type Release struct {
	ID                 string  `json:"id"`
	AlbumID            string  `json:"album_id"`
	ReleaseName        *string `json:"release_name,omitempty"`
	Year               *int    `json:"year,omitempty"`
	Format             *string `json:"format,omitempty"`
	Label              *string `json:"label,omitempty"`
	CatalogNumber      *string `json:"catalog_number,omitempty"`
	Country            *string `json:"country,omitempty"`
	Barcode            *string `json:"barcode,omitempty"`
	ImportStatus       string  `json:"import_status"`
	DiscogsReleaseID   *string `json:"discogs_release_id,omitempty"`
	BandcampReleaseID  *string `json:"bandcamp_release_id,omitempty"`
	ManagedLocally     bool    `json:"managed_locally"`
	UnmanagedPath      *string `json:"unmanaged_path,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"_updated_at"`
}

// Track is one audio track within a Release.
type Track struct {
	ID           string  `json:"id"`
	ReleaseID    string  `json:"release_id"`
	Title        string  `json:"title"`
	DiscNumber   *int    `json:"disc_number,omitempty"`
	TrackNumber  *int    `json:"track_number,omitempty"`
	DurationMs   *int    `json:"duration_ms,omitempty"`
	Isrc         *string `json:"isrc,omitempty"`
	ImportStatus string  `json:"import_status"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"_updated_at"`
}

// EncryptionScheme names which key a File is encrypted under.
type EncryptionScheme string

const (
	EncryptionMaster  EncryptionScheme = "master"
	EncryptionDerived EncryptionScheme = "derived"
)

// File is one content-addressed blob belonging to a Release.
type File struct {
	ID                string           `json:"id"`
	ReleaseID         string           `json:"release_id"`
	OriginalFilename  string           `json:"original_filename"`
	FileSize          int64            `json:"file_size"`
	ContentType       string           `json:"content_type"`
	EncryptionNonce   *string          `json:"encryption_nonce,omitempty"`
	EncryptionScheme  EncryptionScheme `json:"encryption_scheme"`
	SourcePath        *string          `json:"source_path,omitempty"`
	SHA256            *string          `json:"sha256,omitempty"`
	CreatedAt         string           `json:"created_at"`
	UpdatedAt         string           `json:"_updated_at"`
}

// ImageSource names where an Image's bytes originated.
type ImageSource string

const (
	ImageSourceLocal       ImageSource = "local"
	ImageSourceMusicBrainz ImageSource = "musicbrainz"
	ImageSourceDiscogs     ImageSource = "discogs"
)

// Image is cover art or other artwork belonging to a Release.
type Image struct {
	ID        string      `json:"id"`
	ReleaseID string      `json:"release_id"`
	Filename  string      `json:"filename"`
	IsCover   bool        `json:"is_cover"`
	Source    ImageSource `json:"source"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"_updated_at"`
}

// ReleaseStorage pairs a Release with the StorageProfile it is stored under.
type ReleaseStorage struct {
	ReleaseID        string `json:"release_id"`
	StorageProfileID string `json:"storage_profile_id"`
	UpdatedAt        string `json:"_updated_at"`
}

// ImportStatus values for ImportJob.
const (
	ImportPending    = "pending"
	ImportPreparing  = "preparing"
	ImportImporting  = "importing"
	ImportComplete   = "complete"
	ImportFailed     = "failed"
)

// ImportJob tracks the progress of one import so the UI collaborator can
// resume visibility across restarts.
type ImportJob struct {
	ID              string  `json:"id"`
	AlbumTitle      string  `json:"album_title"`
	ArtistName      string  `json:"artist_name"`
	Status          string  `json:"status"`
	ReleaseID       *string `json:"release_id,omitempty"`
	CurrentStep     *string `json:"current_step,omitempty"`
	ProgressPercent *int    `json:"progress_percent,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"_updated_at"`
}
