package ingest

import (
	"net/url"
	"strings"

	"ansifier-server/internal/apperr"
)

// allowedExtensions is the fixed allow-list of accepted image and video file
// suffixes, normalized to dotted lowercase.
var allowedExtensions = []string{
	".blp", ".bmp", ".dds", ".dib", ".eps", ".gif", ".icns", ".ico", ".im",
	".jpeg", ".jpg", ".msp", ".pcx", ".pfm", ".png", ".ppm", ".sgi",
	".spider", ".tga", ".tiff", ".webp", ".xbm", ".cur", ".dcx", ".fits",
	".fli", ".flc", ".fpx", ".ftex", ".gbr", ".gd", ".imt", ".mcidas",
	".mic", ".mpo", ".pcd", ".pixar", ".psd", ".qoi", ".sun", ".wal",
	".wmf", ".emf", ".xpm", ".palm", ".pdf", ".bufr", ".grib", ".hdf5",
	".mpeg",

	".mp4", ".mov", ".mkv", ".avi", ".wmv", ".flv", ".mpg", ".3gp",
	".webm", ".ogv", ".m4v", ".ts", ".mts", ".m2ts", ".divx", ".vob",
	".rm", ".rmvb", ".asf",
}

// ValidateURL runs the three checks in fixed order, short-circuiting on the
// first failure: syntactic validity, secure scheme, allowed file suffix. On
// success the URL is returned unchanged so re-validation is idempotent.
func ValidateURL(raw string) (string, error) {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil || parsed.Host == "" {
		return "", apperr.New(apperr.KindClientInput, "a valid URL must be supplied")
	}

	if parsed.Scheme != "https" {
		return "", apperr.New(apperr.KindClientInput, "only HTTPS URLs are allowed")
	}

	path := strings.ToLower(parsed.Path)
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(path, ext) {
			return raw, nil
		}
	}
	return "", apperr.New(apperr.KindClientInput, "file type must be one of the supported image or video extensions")
}
