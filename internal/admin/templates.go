package admin

const templateSource = `
{{define "login"}}
<!doctype html>
<html>
<head><title>Chat Admin — Login</title></head>
<body>
<h1>Admin Login</h1>
{{if .Error}}<p style="color:red">{{.Error}}</p>{{end}}
<form method="post" action="/login">
  <label>Username <input type="text" name="login"></label>
  <label>Password <input type="password" name="password"></label>
  <button type="submit">Log in</button>
</form>
</body>
</html>
{{end}}

{{define "index"}}
<!doctype html>
<html>
<head><title>Chat Admin</title></head>
<body>
<h1>Users</h1>
<table border="1">
<tr><th>Name</th><th>Active</th><th>Admin</th><th></th></tr>
{{range .Users}}
<tr>
  <td>{{.Name}}</td>
  <td>{{.Active}}</td>
  <td>{{.Admin}}</td>
  <td>
    <form method="post" action="/users/{{.ID}}">
      <label>Active <input type="checkbox" name="is_active" {{if .Active}}checked{{end}}></label>
      <label>Admin <input type="checkbox" name="is_admin" {{if .Admin}}checked{{end}}></label>
      <button type="submit">Save</button>
    </form>
  </td>
</tr>
{{end}}
</table>

<h1>Message History</h1>
<table border="1">
<tr><th>Author</th><th>Message</th><th>Sent at</th></tr>
{{range .Messages}}
<tr><td>{{.AuthorName}}</td><td>{{.Message}}</td><td>{{.SentAt}}</td></tr>
{{end}}
</table>
</body>
</html>
{{end}}
`
