package api

// Config is the root of a ranger.hcl file. Every attribute is optional;
// unset values keep their defaults.
type Config struct {
	// Workers is the number of top-level subtrees surveyed in parallel.
	Workers int `hcl:"workers,optional"`
	// SkipNames are directory names excluded with their subtrees.
	SkipNames []string `hcl:"skip_names,optional"`
	// ImagingExtensions mark a folder as an imaging session.
	ImagingExtensions []string `hcl:"imaging_extensions,optional"`
	// CheckpointName is the checkpoint file inside the surveyed directory.
	CheckpointName string `hcl:"checkpoint_name,optional"`
	// LogName is the log file appended to inside the surveyed directory.
	LogName string `hcl:"log_name,optional"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `hcl:"log_level,optional"`
	// ExtractTimeout bounds a single file extraction, e.g. "30s".
	ExtractTimeout string `hcl:"extract_timeout,optional"`
	// ReconstructionSuffix names the reconstruction subfolder of a leaf.
	// An explicit empty string disables it.
	ReconstructionSuffix *string `hcl:"reconstruction_suffix,optional"`
	// FolderMetadataExtensions are file types whose metadata describes
	// the folder holding them.
	FolderMetadataExtensions []string `hcl:"folder_metadata_extensions,optional"`

	Stack     *StackConfig    `hcl:"stack,block"`
	Store     *StoreConfig    `hcl:"store,block"`
	Artifacts *ArtifactConfig `hcl:"artifacts,block"`
}

// StackConfig controls grouping of numbered slices.
type StackConfig struct {
	// Pattern is a regexp with (?P<stem>...) and (?P<number>...) groups.
	Pattern string `hcl:"pattern,optional"`
	// MinSize is the smallest run treated as a stack; 0 disables stacking.
	MinSize int `hcl:"min_size,optional"`
	// Mode is "all" or "first".
	Mode string `hcl:"mode,optional"`
}

// StoreConfig locates the graph database.
type StoreConfig struct {
	Path      string `hcl:"path,optional"`
	CacheSize int    `hcl:"cache_size,optional"`
}

// ArtifactConfig locates the S3-compatible bucket for scan results.
type ArtifactConfig struct {
	Endpoint  string `hcl:"endpoint,optional"`
	Bucket    string `hcl:"bucket,optional"`
	Region    string `hcl:"region,optional"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional"`
	UseSSL    *bool  `hcl:"use_ssl,optional"`
	Prefix    string `hcl:"prefix,optional"`
}
