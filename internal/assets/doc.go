// Package assets loads the LaTeX document templates the compiler fills in.
//
// Built-in templates are embedded in the binary. Operators can add or
// override templates by pointing render.templateDir at a directory of
// {name}.tex files; a name found there shadows the embedded one.
//
// A template is a complete document containing Placeholder where the
// user's markup goes. Custom templates are re-read on every compile, but
// cached renders made with an older version are not invalidated.
package assets
