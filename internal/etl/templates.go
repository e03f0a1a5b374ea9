package etl

import "html/template"

var indexTemplate = template.Must(template.New("index").Parse(`<html>
  <head>
    <title>Lab ETL API</title>
  </head>
  <body>
    <h1>Lab ETL API</h1>
    <p>Available endpoints:</p>
    <ul>
      <li><a href="/trigger-etl">Trigger ETL</a></li>
      <li><a href="/etl-results">ETL Results</a></li>
      <li><a href="/etl-runs">ETL Runs</a></li>
    </ul>
  </body>
</html>
`))

var successTemplate = template.Must(template.New("success").Parse(`<html>
  <head>
    <title>ETL Success</title>
  </head>
  <body>
    <h1>ETL process succeeded</h1>
    <p>Status code: {{.StatusCode}}</p>
    <p>{{.Message}}</p>
    <p><a href="/etl-results">View results</a> | <a href="/">Back</a></p>
  </body>
</html>
`))

var errorTemplate = template.Must(template.New("error").Parse(`<html>
  <head>
    <title>ETL Error</title>
  </head>
  <body>
    <h1>ETL process failed</h1>
    <p>Status code: {{.StatusCode}}</p>
    <p>{{.Message}}</p>
    <p><a href="/">Back</a></p>
  </body>
</html>
`))

type viewData struct {
	StatusCode int
	Message    string
}
