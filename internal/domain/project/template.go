package project

import "github.com/cipherstudio/cipherstudio/internal/domain/vfs"

// StarterFiles returns the seed file map for a new project. Only the react
// framework ships a full template; everything else starts from a bare
// index.html so the static preview fallback has something to render.
func StarterFiles(framework string) vfs.FileMap {
	if framework == FrameworkReact || framework == "" {
		return reactStarter()
	}
	return vfs.FileMap{
		"/index.html": {Code: "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n  <meta charset=\"UTF-8\">\n  <title>CipherStudio Starter</title>\n</head>\n<body>\n  <h1>Hello CipherStudio</h1>\n</body>\n</html>"},
	}
}

func reactStarter() vfs.FileMap {
	return vfs.FileMap{
		"/index.html": {Code: `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>CipherStudio Starter</title>
  <link rel="stylesheet" href="/src/index.css">
</head>
<body>
  <div id="root"></div>
  <script type="module" src="/src/main.jsx"></script>
</body>
</html>`},
		"/package.json": {Code: `{
  "name": "cipherstudio-starter",
  "version": "1.0.0",
  "private": true,
  "type": "module",
  "dependencies": {
    "react": "^19.1.1",
    "react-dom": "^19.1.1"
  },
  "devDependencies": {
    "vite": "^5.0.0"
  },
  "scripts": {
    "dev": "vite",
    "build": "vite build",
    "preview": "vite preview"
  }
}`},
		"/src/main.jsx": {Code: `import React from 'react';
import { createRoot } from 'react-dom/client';
import App from './App.jsx';
import './index.css';

const root = createRoot(document.getElementById('root'));
root.render(<App />);`},
		"/src/App.jsx": {Code: `import React, { useState } from 'react';
import '/src/App.css';

function App() {
  const [counter, setCounter] = useState(0);

  const increment = () => setCounter(prev => prev + 1);

  return (
    <div className="App">
      <h1>Hello CipherStudio</h1>
      <p>Start editing to see live changes</p>
      <p>Counter: {counter}</p>
      <button onClick={increment}>Increase</button>
    </div>
  );
}

export default App;`},
		"/src/App.css": {Code: `body {
  font-family: 'Inter', sans-serif;
  margin: 0;
  padding: 0;
  background: linear-gradient(to bottom right, #19191a, #05070a);
  min-height: 100vh;
  display: flex;
  justify-content: center;
  align-items: center;
}

.App {
  background: rgb(12, 10, 10);
  padding: 2rem 3rem;
  border-radius: 12px;
  box-shadow: 0 8px 20px rgba(0,0,0,0.1);
  text-align: center;
}

h1 {
  font-size: 2rem;
  color: #fff;
  margin-bottom: 0.5rem;
}

p {
  font-size: 1.1rem;
  color: #fff;
  margin-bottom: 1rem;
}

button {
  padding: 0.6rem 1.2rem;
  background-color: #4f46e5;
  color: rgb(221, 221, 221);
  border: none;
  border-radius: 6px;
  cursor: pointer;
}

button:hover {
  background-color: #4338ca;
}`},
		"/src/index.css": {Code: `* {
  box-sizing: border-box;
  margin: 0;
  padding: 0;
}`},
	}
}
