// Package permission answers membership queries over the flat set of
// permission strings an authenticated user holds, and defines the
// platform role taxonomy.
package permission
