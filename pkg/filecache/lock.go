package filecache

// lockFileName is the precache lock file inside the cache directory.
const lockFileName = ".precache-lock"
